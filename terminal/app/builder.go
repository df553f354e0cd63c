// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"go.dafunk.io/terminal/appctx"
	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/config"
	"go.dafunk.io/terminal/metrics"
	"go.dafunk.io/terminal/scheduler"
	"go.dafunk.io/terminal/session"
	"go.dafunk.io/terminal/substrate"
	"go.dafunk.io/terminal/substrate/model"
	"go.dafunk.io/terminal/worker"
)

// Builder assembles an App. Every collaborator has a default; setters
// override them.
type Builder struct {
	settings      config.Settings
	params        *config.Params
	substrate     model.Substrate
	client        worker.PaymentClient
	renderer      worker.Renderer
	network       session.Network
	fallback      session.FallbackPolicy
	cancel        session.CancelRequested
	shutdownFuncs []context.CancelFunc
	handleSignals bool
}

func NewBuilder(settings config.Settings) *Builder {
	return &Builder{
		settings:      settings,
		shutdownFuncs: []context.CancelFunc{},
	}
}

func (b *Builder) SetParams(params *config.Params) *Builder {
	b.params = params
	return b
}

func (b *Builder) SetSubstrate(substrate model.Substrate) *Builder {
	b.substrate = substrate
	return b
}

func (b *Builder) SetPaymentClient(client worker.PaymentClient) *Builder {
	b.client = client
	return b
}

func (b *Builder) SetRenderer(renderer worker.Renderer) *Builder {
	b.renderer = renderer
	return b
}

func (b *Builder) SetNetwork(network session.Network) *Builder {
	b.network = network
	return b
}

func (b *Builder) SetFallbackPolicy(fallback session.FallbackPolicy) *Builder {
	b.fallback = fallback
	return b
}

func (b *Builder) SetCancelSignal(cancel session.CancelRequested) *Builder {
	b.cancel = cancel
	return b
}

// AddShutdownFunc registers a func run when SIGINT or SIGTERM arrives.
func (b *Builder) AddShutdownFunc(shutdownFunc context.CancelFunc) *Builder {
	b.shutdownFuncs = append(b.shutdownFuncs, shutdownFunc)
	b.handleSignals = true
	return b
}

// Create wires the components and returns the App. Workers are not started
// until App.Run.
func (b *Builder) Create() *App {
	appCtx := appctx.NewApplicationContext()
	appctx.LoadBootTime(appCtx)
	appctx.StoreApplicationName(appCtx, b.settings.ApplicationName)

	sub := b.substrate
	if sub == nil {
		sub = substrate.NewLocalSubstrate(b.settings.CommandWait)
	}
	params := b.params
	if params == nil {
		params = config.NewParams(nil)
	}
	m := metrics.New()

	a := &App{
		settings: b.settings,
		appCtx:   appCtx,
		metrics:  m,
	}

	a.Rendezvous = channel.NewRendezvous(sub, channel.IdentityFunc(func(ctx context.Context) bool {
		return a.Scheduler.IsCommunicationThread(ctx)
	}))
	a.Broadcast = channel.NewPubSub(sub)

	statusBar := worker.NewStatusBar(sub, channel.NewPubSub(sub), b.renderer, b.settings.StatusBarRefresh)
	communication := worker.NewCommunication(sub, a.Rendezvous, b.client,
		b.settings.PumpInterval, b.settings.CheckReadTimeout)

	settings := b.settings
	a.Scheduler = scheduler.NewScheduler(scheduler.Config{
		Substrate:        sub,
		Handlers:         worker.Handlers(statusBar, communication),
		StatusBarEnabled: func() bool { return settings.StatusBarEnabled },
		AppCtx:           appCtx,
		Metrics:          m,
		RespawnBurst:     b.settings.RespawnBurst,
		RespawnRate:      b.settings.RespawnRate,
	})

	a.Session = session.NewSession(session.Config{
		Commander:  a.Scheduler,
		Rendezvous: a.Rendezvous,
		Params:     params,
		Network:    b.network,
		Fallback:   b.fallback,
		Cancel:     b.cancel,
		AppCtx:     appCtx,
		Settings:   b.settings,
	})
	a.Scheduler.SetResourceOwner(a.Session.OwnsResource)

	if b.handleSignals {
		go signalHandler(b.shutdownFuncs)
	}
	return a
}

func signalHandler(shutdownFuncs []context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	sigReceived := <-sig
	log.WithField("signal", sigReceived.String()).Info("Received signal")
	for _, shutdownFunc := range shutdownFuncs {
		shutdownFunc()
	}
}
