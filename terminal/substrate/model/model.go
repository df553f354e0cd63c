// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"errors"
	"time"
)

// SlotID is the small integer the substrate uses to address a worker slot.
type SlotID int

const (
	SlotStatusBar     SlotID = 0
	SlotCommunication SlotID = 1
)

// ChannelID addresses one direction of the rendezvous channel.
type ChannelID int

const (
	ChannelSend ChannelID = 0
	ChannelRecv ChannelID = 1
)

// EventID tags a payload written to a rendezvous channel. Zero asks a read
// for the first pending payload regardless of its id.
type EventID int64

// StatusCode is the raw slot status reported by a substrate poll.
type StatusCode int

const (
	StatusDead     StatusCode = 0
	StatusAlive    StatusCode = 1
	StatusCommand  StatusCode = 2
	StatusResponse StatusCode = 3
	StatusPause    StatusCode = 4
	StatusBlocked  StatusCode = 5
)

// ReplyCache is the raw command reply meaning "no new value, keep using what
// you have".
const ReplyCache = "cache"

// CommandHandler answers one inbound command string on the worker side.
type CommandHandler func(command string) string

// ThreadSubstrate provides the per-slot thread primitives.
type ThreadSubstrate interface {
	Start(id SlotID) error
	Stop(id SlotID) error
	// Pause requests the worker to stop at its next safe point and blocks
	// until the worker acknowledges or ctx is done.
	Pause(ctx context.Context, id SlotID) error
	Continue(id SlotID) error
	// Check returns the slot status. A positive timeout waits up to that long
	// for an in-flight command exchange to settle.
	Check(id SlotID, timeout time.Duration) StatusCode
	// Command posts a command to the worker and returns its raw reply, or
	// ReplyCache when the worker did not answer in time.
	Command(id SlotID, command string) string
	// Execute is called on the worker side. It runs handler against the
	// pending command, if any, and reports whether one was served.
	Execute(id SlotID, handler CommandHandler) bool
	// SafePoint is called on the worker side between units of work. It
	// acknowledges a pending pause request and blocks until continued, the
	// slot is stopped or ctx is done.
	SafePoint(ctx context.Context, id SlotID)
	// Notify returns a channel signalled whenever the slot has something for
	// the worker to look at: a command, a pause request or a stop.
	Notify(id SlotID) <-chan struct{}
	// SetBlocked is called on the worker side around calls that may block for
	// long. A blocked slot answers commands with ReplyCache right away.
	SetBlocked(id SlotID, blocked bool)
	// Kill marks the slot dead without the stop handshake. Used when a worker
	// exits unexpectedly.
	Kill(id SlotID)
}

// ChannelSubstrate provides the raw rendezvous queues.
type ChannelSubstrate interface {
	Write(channel ChannelID, event EventID, payload []byte) error
	// Read blocks until a payload tagged with event (or any payload, when
	// event is zero) is available on channel, or ctx is done.
	Read(ctx context.Context, channel ChannelID, event EventID) (EventID, []byte, error)
}

// PubSubSubstrate provides the raw broadcast queues.
type PubSubSubstrate interface {
	Subscribe() (int, error)
	Publish(payload []byte, avoid int) error
	Listen(ctx context.Context, id int) ([]byte, error)
}

// Substrate is the whole execution substrate contract.
type Substrate interface {
	ThreadSubstrate
	ChannelSubstrate
	PubSubSubstrate
}

type ErrorKind string

const (
	// NoSuchEntity is returned for an unknown slot, channel or subscriber.
	NoSuchEntity ErrorKind = "no_such_entity"
	// InvalidState is returned when the slot is not in a state that allows
	// the operation, e.g. pausing a dead slot.
	InvalidState ErrorKind = "invalid_state"
	// Exhausted is returned when a fixed-size table is full.
	Exhausted ErrorKind = "exhausted"
	// Canceled is returned when a blocking call ended with its context.
	Canceled ErrorKind = "canceled"
)

type SubstrateError struct {
	Kind    ErrorKind `json:"error_kind"`
	Message *string   `json:"message"`
}

func (e *SubstrateError) Error() string {
	if e.Message != nil {
		return string(e.Kind) + ": " + *e.Message
	}
	return string(e.Kind)
}

// NewError builds a SubstrateError with a message.
func NewError(kind ErrorKind, msg string) *SubstrateError {
	return &SubstrateError{Kind: kind, Message: &msg}
}

// IsKind reports whether err is a SubstrateError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *SubstrateError
	return errors.As(err, &e) && e.Kind == kind
}
