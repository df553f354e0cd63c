// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package interop

import (
	"errors"
	"fmt"
	"strconv"

	"go.dafunk.io/terminal/substrate/model"
)

type ResponseKind int

const (
	ResponseEmpty ResponseKind = iota
	ResponseBool
	ResponseText
)

// Response is the decoded reply of a worker to a command.
type Response struct {
	Kind ResponseKind
	Bool bool
	Text string
}

var Empty = Response{Kind: ResponseEmpty}

func Bool(b bool) Response { return Response{Kind: ResponseBool, Bool: b} }

func Text(s string) Response { return Response{Kind: ResponseText, Text: s} }

// Truthy follows the worker's wire semantics: empty and false are falsey,
// everything else is truthy.
func (r Response) Truthy() bool {
	switch r.Kind {
	case ResponseBool:
		return r.Bool
	case ResponseText:
		return true
	}
	return false
}

func (r Response) IsEmpty() bool { return r.Kind == ResponseEmpty }

// Encode returns the wire form of the response.
func (r Response) Encode() string {
	switch r.Kind {
	case ResponseBool:
		return strconv.FormatBool(r.Bool)
	case ResponseText:
		return strconv.Quote(r.Text)
	}
	return "nil"
}

func (r Response) String() string {
	return r.Encode()
}

// ErrMalformedReply is returned when a raw worker reply cannot be decoded.
var ErrMalformedReply = errors.New("MalformedReply")

// DecodeReply parses a raw worker reply. The cache sentinel is reported with
// cached=true and an empty response.
func DecodeReply(raw string) (resp Response, cached bool, err error) {
	switch raw {
	case model.ReplyCache:
		return Empty, true, nil
	case "true":
		return Bool(true), false, nil
	case "false":
		return Bool(false), false, nil
	case "nil", "":
		return Empty, false, nil
	}
	if len(raw) >= 2 && raw[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return Empty, false, fmt.Errorf("%w: %q: %s", ErrMalformedReply, raw, err)
		}
		return Text(s), false, nil
	}
	return Empty, false, fmt.Errorf("%w: %q", ErrMalformedReply, raw)
}
