// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package interop

import (
	"errors"
	"fmt"
	"strings"
)

// Verb is the closed vocabulary of commands the main context can send to a
// worker.
type Verb int

const (
	VerbConnectedQuery Verb = iota
	VerbHandshakeQuery
	VerbHandshake
	VerbConnect
	VerbClose
	VerbCode
	VerbCheck
	// VerbSet carries a "<name>=<value>" setter.
	VerbSet
)

var verbWire = map[Verb]string{
	VerbConnectedQuery: "connected?",
	VerbHandshakeQuery: "handshake?",
	VerbHandshake:      "handshake",
	VerbConnect:        "connect",
	VerbClose:          "close",
	VerbCode:           "code",
	VerbCheck:          "check",
}

func (v Verb) String() string {
	if s, ok := verbWire[v]; ok {
		return s
	}
	if v == VerbSet {
		return "set"
	}
	return fmt.Sprintf("Verb(%d)", int(v))
}

// ErrUnknownCommand is returned when a wire command is outside the vocabulary.
var ErrUnknownCommand = errors.New("UnknownCommand")

// Command is one typed command. Name and Value are only meaningful for
// VerbSet.
type Command struct {
	Verb  Verb
	Name  string
	Value string
}

var (
	ConnectedQuery = Command{Verb: VerbConnectedQuery}
	HandshakeQuery = Command{Verb: VerbHandshakeQuery}
	Handshake      = Command{Verb: VerbHandshake}
	Connect        = Command{Verb: VerbConnect}
	Close          = Command{Verb: VerbClose}
	Code           = Command{Verb: VerbCode}
	Check          = Command{Verb: VerbCheck}
)

// Set builds a setter command, e.g. Set("app", "main") encodes as "app=main".
func Set(name, value string) Command {
	return Command{Verb: VerbSet, Name: name, Value: value}
}

// String returns the wire form of the command.
func (c Command) String() string {
	if c.Verb == VerbSet {
		return c.Name + "=" + c.Value
	}
	return c.Verb.String()
}

// ParseCommand decodes a wire command on the worker side.
func ParseCommand(wire string) (Command, error) {
	for verb, s := range verbWire {
		if wire == s {
			return Command{Verb: verb}, nil
		}
	}
	if i := strings.IndexByte(wire, '='); i > 0 {
		return Set(wire[:i], wire[i+1:]), nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, wire)
}
