// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/fatalerror"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/substrate/model"
)

const (
	defaultPumpInterval    = 10 * time.Millisecond
	defaultPumpReadTimeout = 10 * time.Millisecond
)

// Communication is the communication worker. It answers commands with its
// PaymentClient and moves payloads between the rendezvous channel and the
// host.
type Communication struct {
	substrate model.ThreadSubstrate
	channel   *channel.Rendezvous
	client    PaymentClient

	pumpInterval    time.Duration
	pumpReadTimeout time.Duration
}

// NewCommunication returns the communication worker. A nil client makes
// every command answer false.
func NewCommunication(substrate model.ThreadSubstrate, ch *channel.Rendezvous, client PaymentClient, pumpInterval, pumpReadTimeout time.Duration) *Communication {
	if pumpInterval <= 0 {
		pumpInterval = defaultPumpInterval
	}
	if pumpReadTimeout <= 0 {
		pumpReadTimeout = defaultPumpReadTimeout
	}
	return &Communication{
		substrate:       substrate,
		channel:         ch,
		client:          client,
		pumpInterval:    pumpInterval,
		pumpReadTimeout: pumpReadTimeout,
	}
}

// Client returns the client the worker drives, nil if none.
func (c *Communication) Client() PaymentClient {
	return c.client
}

// Run is the worker body. It returns when ctx is done or the slot is dead.
func (c *Communication) Run(ctx context.Context, id model.SlotID) error {
	notify := c.substrate.Notify(id)
	ticker := time.NewTicker(c.pumpInterval)
	defer ticker.Stop()

	log.WithField("slot", id).Debug("Communication worker running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-notify:
		case <-ticker.C:
		}
		if c.substrate.Check(id, 0) == model.StatusDead {
			return nil
		}
		c.substrate.Execute(id, func(command string) string {
			return c.serve(ctx, id, command)
		})
		c.substrate.SafePoint(ctx, id)
		c.pump(ctx, id)
	}
}

func (c *Communication) serve(ctx context.Context, id model.SlotID, command string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"slot": id, "label": fatalerror.WorkerCommandServe}).
				Errorf("Command %q panicked: %v", command, r)
			reply = model.ReplyCache
		}
	}()

	cmd, err := interop.ParseCommand(command)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"slot": id, "label": fatalerror.WorkerCommandServe}).
			Warn("Rejecting command")
		return model.ReplyCache
	}
	if c.client == nil {
		return interop.Bool(false).Encode()
	}
	return c.dispatch(ctx, id, cmd).Encode()
}

func (c *Communication) dispatch(ctx context.Context, id model.SlotID, cmd interop.Command) interop.Response {
	logError := func(err error) {
		log.WithError(err).WithFields(log.Fields{"slot": id, "label": fatalerror.WorkerCommandServe}).
			Warnf("Command %s failed", cmd)
	}

	switch cmd.Verb {
	case interop.VerbConnect:
		ok, err := c.client.Connect(ctx)
		if err != nil {
			logError(err)
		}
		return interop.Bool(ok && err == nil)
	case interop.VerbConnectedQuery:
		return interop.Bool(c.client.Connected())
	case interop.VerbHandshakeQuery:
		return interop.Bool(c.client.HandshakeDone())
	case interop.VerbHandshake:
		ok, err := c.client.Handshake(ctx)
		if err != nil {
			logError(err)
		}
		return interop.Bool(ok && err == nil)
	case interop.VerbClose:
		if err := c.client.Close(); err != nil {
			logError(err)
			return interop.Bool(false)
		}
		return interop.Bool(true)
	case interop.VerbCode:
		return interop.Text(c.client.Code())
	case interop.VerbCheck:
		if text, ok := c.client.Check(ctx); ok {
			return interop.Text(text)
		}
		return interop.Empty
	case interop.VerbSet:
		return interop.Bool(c.client.Set(cmd.Name, cmd.Value))
	}
	return interop.Empty
}

// pump forwards at most one pending request to the host and one host payload
// back to the main context.
func (c *Communication) pump(ctx context.Context, id model.SlotID) {
	if c.client == nil || c.channel == nil || !c.client.Connected() {
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, c.pumpReadTimeout)
	_, payload, err := c.channel.Read(readCtx, channel.Send)
	cancel()
	if err == nil {
		c.substrate.SetBlocked(id, true)
		err = c.client.Send(ctx, payload)
		c.substrate.SetBlocked(id, false)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"slot": id, "label": fatalerror.ChannelPump}).
				Warn("Failed to forward payload to host")
		}
	}

	answer, ok, err := c.client.Receive(ctx)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"slot": id, "label": fatalerror.ChannelPump}).
			Warn("Failed to receive from host")
		return
	}
	if !ok {
		return
	}
	if _, err := c.channel.Write(ctx, channel.Recv, answer); err != nil {
		log.WithError(err).WithFields(log.Fields{"slot": id, "label": fatalerror.ChannelPump}).
			Warn("Failed to deliver host payload")
	}
}
