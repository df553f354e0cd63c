// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/scheduler"
	"go.dafunk.io/terminal/substrate"
)

type recordingRenderer struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingRenderer) Render(ctx context.Context, notice Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	return nil
}

func (r *recordingRenderer) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if !n.Refresh {
			out = append(out, n.Text)
		}
	}
	return out
}

type fixture struct {
	sub        *substrate.LocalSubstrate
	sched      *scheduler.Scheduler
	rendezvous *channel.Rendezvous
	renderer   *recordingRenderer
	broadcast  *channel.PubSub
}

func newFixture(t *testing.T, client PaymentClient) *fixture {
	f := &fixture{
		sub:      substrate.NewLocalSubstrate(500 * time.Millisecond),
		renderer: &recordingRenderer{},
	}
	var sched *scheduler.Scheduler
	f.rendezvous = channel.NewRendezvous(f.sub, channel.IdentityFunc(func(ctx context.Context) bool {
		return sched.IsCommunicationThread(ctx)
	}))
	statusBar := NewStatusBar(f.sub, channel.NewPubSub(f.sub), f.renderer, time.Hour)
	comm := NewCommunication(f.sub, f.rendezvous, client, time.Millisecond, time.Millisecond)
	sched = scheduler.NewScheduler(scheduler.Config{
		Substrate: f.sub,
		Handlers:  Handlers(statusBar, comm),
	})
	f.sched = sched
	f.broadcast = channel.NewPubSub(f.sub)
	_, err := f.broadcast.Subscribe()
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(func() { _ = sched.StopAll(context.Background()) })
	return f
}

func TestCommunicationServesCommands(t *testing.T) {
	client := NewLoopbackClient("T-100")
	f := newFixture(t, client)

	command := func(cmd interop.Command) interop.Response {
		resp, err := f.sched.Command(core.ThreadCommunication, cmd)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, interop.Bool(false), command(interop.ConnectedQuery))
	assert.Equal(t, interop.Bool(true), command(interop.Connect))
	assert.Equal(t, interop.Bool(true), command(interop.ConnectedQuery))
	assert.Equal(t, interop.Bool(false), command(interop.HandshakeQuery))
	assert.Equal(t, interop.Bool(true), command(interop.Handshake))
	assert.Equal(t, interop.Bool(true), command(interop.HandshakeQuery))
	assert.Equal(t, interop.Text("T-100"), command(interop.Code))
	assert.Equal(t, interop.Bool(true), command(interop.Set("app", "main")))
	app, _ := client.Setting("app")
	assert.Equal(t, "main", app)

	assert.True(t, command(interop.Check).IsEmpty())
	client.Notify("new parameters")
	assert.Equal(t, interop.Text("new parameters"), command(interop.Check))

	assert.Equal(t, interop.Bool(true), command(interop.Close))
	assert.Equal(t, interop.Bool(false), command(interop.ConnectedQuery))
}

func TestCommunicationWithoutClientAnswersFalse(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := f.sched.Command(core.ThreadCommunication, interop.Connect)
	require.NoError(t, err)
	assert.Equal(t, interop.Bool(false), resp)
}

func TestCommunicationPumpsPayloads(t *testing.T) {
	client := NewLoopbackClient("T-100")
	f := newFixture(t, client)
	_, err := f.sched.Command(core.ThreadCommunication, interop.Connect)
	require.NoError(t, err)

	ctx := context.Background()
	ev, err := f.rendezvous.Write(ctx, channel.Send, []byte("0200 sale"))
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	got, payload, err := f.rendezvous.Read(readCtx, channel.Recv)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
	assert.Equal(t, []byte("0200 sale"), payload)
}

type failingClient struct {
	*LoopbackClient
}

func (failingClient) Connect(ctx context.Context) (bool, error) {
	return false, errors.New("host unreachable")
}

func (failingClient) Code() string {
	panic("no code configured")
}

func TestCommunicationSurvivesClientFailures(t *testing.T) {
	f := newFixture(t, failingClient{NewLoopbackClient("")})

	resp, err := f.sched.Command(core.ThreadCommunication, interop.Connect)
	require.NoError(t, err)
	assert.Equal(t, interop.Bool(false), resp)

	resp, err = f.sched.Command(core.ThreadCommunication, interop.Code)
	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())

	status, _ := f.sched.CheckStatus(core.ThreadCommunication, 0)
	assert.Equal(t, core.Alive, status)
}

func TestStatusBarRendersBroadcasts(t *testing.T) {
	f := newFixture(t, nil)

	// the status bar subscribes when its worker starts
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, f.broadcast.Publish("Connecting..."))

	assert.Eventually(t, func() bool {
		texts := f.renderer.texts()
		return len(texts) == 1 && texts[0] == "Connecting..."
	}, time.Second, 5*time.Millisecond)
}

func TestStatusBarKeepsSubscriptionAcrossRespawns(t *testing.T) {
	f := newFixture(t, nil)
	time.Sleep(20 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, f.sched.Stop(ctx, core.ThreadStatusBar))
	require.NoError(t, f.sched.Spawn(ctx, core.ThreadStatusBar))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, f.broadcast.Publish("Online"))
	assert.Eventually(t, func() bool {
		return len(f.renderer.texts()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStatusBarPausing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.sched.Pausing(ctx, core.ThreadStatusBar, func() error {
		status, _ := f.sched.CheckStatus(core.ThreadStatusBar, 0)
		assert.Equal(t, core.Paused, status)
		return nil
	})
	require.NoError(t, err)
	status, _ := f.sched.CheckStatus(core.ThreadStatusBar, 0)
	assert.Equal(t, core.Alive, status)
}
