// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/scheduler"
	"go.dafunk.io/terminal/substrate"
	"go.dafunk.io/terminal/worker"
)

func TestSessionLifecycle(t *testing.T) {
	sub := substrate.NewLocalSubstrate(500 * time.Millisecond)
	client := worker.NewLoopbackClient("T-1")

	var sched *scheduler.Scheduler
	rendezvous := channel.NewRendezvous(sub, channel.IdentityFunc(func(ctx context.Context) bool {
		return sched.IsCommunicationThread(ctx)
	}))
	sched = scheduler.NewScheduler(scheduler.Config{
		Substrate: sub,
		Handlers: worker.Handlers(
			worker.NewStatusBar(sub, channel.NewPubSub(sub), nil, time.Hour),
			worker.NewCommunication(sub, rendezvous, client, time.Millisecond, time.Millisecond),
		),
	})
	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.StopAll(ctx)

	settings := testSettings()
	settings.RecvTimeout = 2 * time.Second
	s, clock := newTestSession(Config{
		Commander:  sched,
		Rendezvous: rendezvous,
		Settings:   settings,
	})
	sched.SetResourceOwner(s.OwnsResource)

	for _, name := range core.ManagedThreads {
		status, err := sched.CheckStatus(name, 0)
		require.NoError(t, err)
		assert.Equal(t, core.Alive, status)
	}

	assert.False(t, s.Connected(ctx))

	_, err := s.Connect(ctx)
	require.NoError(t, err)
	// the debounce answers while the window is open
	assert.True(t, s.Connected(ctx))

	clock.Advance(16 * time.Second)
	assert.True(t, s.Connected(ctx), "loopback client reports connected")

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = client.Handshake(ctx)
	}()
	assert.True(t, s.HandshakeDone(ctx))

	// a payload written by the main context comes back through the host
	_, err = s.Write(ctx, []byte("ping"))
	require.NoError(t, err)
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, payload, err := s.Read(readCtx)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), payload)

	// session state is mutated with the communication worker parked
	require.NoError(t, sched.PausingCommunication(ctx, func() error {
		status, _ := sched.CheckStatus(core.ThreadCommunication, 0)
		assert.Equal(t, core.Paused, status)
		return nil
	}))

	assert.NotZero(t, len(sched.Describe().Cache))
	assert.True(t, s.Close(ctx))
	assert.False(t, client.Connected())

	// the worker reports the closed connection
	resp, err := sched.Command(core.ThreadCommunication, interop.HandshakeQuery)
	require.NoError(t, err)
	assert.Equal(t, interop.Bool(false), resp)
}
