// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/substrate/model"
)

// Name is the external name of a rendezvous direction.
type Name string

const (
	// Send carries payloads from the main context to the communication worker.
	Send Name = "send"
	// Recv carries payloads from the communication worker to the main context.
	Recv Name = "recv"
)

// ErrChannelNotFound is returned for a channel name outside the fixed table.
var ErrChannelNotFound = errors.New("ChannelNotFound")

var channels = map[Name]model.ChannelID{
	Send: model.ChannelSend,
	Recv: model.ChannelRecv,
}

// eventSpread bounds the random component of generated event ids.
const eventSpread = 99999

// ThreadIdentity tells the channel which side of the exchange a caller is on.
type ThreadIdentity interface {
	IsCommunicationThread(ctx context.Context) bool
}

// IdentityFunc adapts a function to ThreadIdentity.
type IdentityFunc func(ctx context.Context) bool

func (f IdentityFunc) IsCommunicationThread(ctx context.Context) bool {
	return f(ctx)
}

type side int

const (
	mainSide side = iota
	workerSide
)

// Rendezvous exchanges one payload per event id pairing between the main
// context, which originates exchanges, and the communication worker, which
// completes them.
type Rendezvous struct {
	substrate model.ChannelSubstrate
	identity  ThreadIdentity

	mu     sync.Mutex
	lastID [2]model.EventID
	rand   *rand.Rand
	now    func() time.Time
}

func NewRendezvous(substrate model.ChannelSubstrate, identity ThreadIdentity) *Rendezvous {
	return &Rendezvous{
		substrate: substrate,
		identity:  identity,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

func lookup(name Name) (model.ChannelID, error) {
	id, ok := channels[name]
	if !ok {
		return 0, fmt.Errorf("%w: channel %q not found", ErrChannelNotFound, name)
	}
	return id, nil
}

func (r *Rendezvous) sideOf(ctx context.Context) side {
	if r.identity != nil && r.identity.IsCommunicationThread(ctx) {
		return workerSide
	}
	return mainSide
}

// generateUnsafe returns a fresh id that differs from the last one the main
// side used.
func (r *Rendezvous) generateUnsafe() model.EventID {
	for {
		id := model.EventID(r.now().Unix() + r.rand.Int63n(eventSpread))
		if id != r.lastID[mainSide] && id != 0 {
			return id
		}
	}
}

// Write publishes payload on the named direction and returns the event id it
// was tagged with. The main side tags it with a fresh id; the worker side
// reuses the id of the exchange it is completing. An explicit id overrides
// both.
func (r *Rendezvous) Write(ctx context.Context, name Name, payload []byte, eventID ...model.EventID) (model.EventID, error) {
	ch, err := lookup(name)
	if err != nil {
		return 0, err
	}
	s := r.sideOf(ctx)

	r.mu.Lock()
	var ev model.EventID
	switch {
	case len(eventID) > 0:
		ev = eventID[0]
	case s == workerSide:
		ev = r.lastID[workerSide]
	default:
		ev = r.generateUnsafe()
	}
	if s == workerSide {
		// pairing complete, the next read takes whatever is pending
		r.lastID[workerSide] = 0
	} else {
		r.lastID[mainSide] = ev
	}
	r.mu.Unlock()

	if err := r.substrate.Write(ch, ev, payload); err != nil {
		return ev, err
	}
	log.WithFields(log.Fields{"channel": name, "event": ev}).Debug("Channel write")
	return ev, nil
}

// Read blocks until the payload the caller expects is available on the named
// direction or ctx is done. The main side expects the id of its last write;
// the worker side takes the first pending payload and remembers its id so
// its reply completes the same exchange.
func (r *Rendezvous) Read(ctx context.Context, name Name) (model.EventID, []byte, error) {
	ch, err := lookup(name)
	if err != nil {
		return 0, nil, err
	}
	s := r.sideOf(ctx)

	r.mu.Lock()
	expected := r.lastID[s]
	r.mu.Unlock()

	ev, payload, err := r.substrate.Read(ctx, ch, expected)
	if err != nil {
		return ev, nil, err
	}

	r.mu.Lock()
	r.lastID[s] = ev
	r.mu.Unlock()
	log.WithFields(log.Fields{"channel": name, "event": ev}).Debug("Channel read")
	return ev, payload, nil
}

// LastID returns the last event id observed by the side ctx belongs to.
func (r *Rendezvous) LastID(ctx context.Context) model.EventID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID[r.sideOf(ctx)]
}
