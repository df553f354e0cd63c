// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package interop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandWireVocabulary(t *testing.T) {
	assert.Equal(t, "connected?", ConnectedQuery.String())
	assert.Equal(t, "handshake?", HandshakeQuery.String())
	assert.Equal(t, "handshake", Handshake.String())
	assert.Equal(t, "connect", Connect.String())
	assert.Equal(t, "close", Close.String())
	assert.Equal(t, "code", Code.String())
	assert.Equal(t, "check", Check.String())
	assert.Equal(t, "app=main", Set("app", "main").String())
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("handshake?")
	require.NoError(t, err)
	assert.Equal(t, HandshakeQuery, cmd)

	cmd, err = ParseCommand("app=pos=v2")
	require.NoError(t, err)
	assert.Equal(t, VerbSet, cmd.Verb)
	assert.Equal(t, "app", cmd.Name)
	assert.Equal(t, "pos=v2", cmd.Value)

	_, err = ParseCommand("system('rm -rf /')")
	assert.True(t, errors.Is(err, ErrUnknownCommand))

	_, err = ParseCommand("=value")
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}

func TestDecodeReply(t *testing.T) {
	resp, cached, err := DecodeReply("cache")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, resp.IsEmpty())

	resp, cached, err = DecodeReply("true")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, Bool(true), resp)

	resp, _, err = DecodeReply("nil")
	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())

	resp, _, err = DecodeReply(Text("12 34\n").Encode())
	require.NoError(t, err)
	assert.Equal(t, Text("12 34\n"), resp)

	_, _, err = DecodeReply("File.delete('x')")
	assert.True(t, errors.Is(err, ErrMalformedReply))

	_, _, err = DecodeReply(`"unterminated`)
	assert.True(t, errors.Is(err, ErrMalformedReply))
}

func TestResponseTruthy(t *testing.T) {
	assert.False(t, Empty.Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.True(t, Text("").Truthy())
}
