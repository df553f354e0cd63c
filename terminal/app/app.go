// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.dafunk.io/terminal/api"
	"go.dafunk.io/terminal/appctx"
	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/config"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/core/statejson"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/metrics"
	"go.dafunk.io/terminal/scheduler"
	"go.dafunk.io/terminal/session"
)

const shutdownTimeout = 5 * time.Second

// typecheck interface compliance
var _ api.Controller = (*App)(nil)

// App owns every component of the terminal context. It replaces process-wide
// state: one App is created at startup and shut down explicitly.
type App struct {
	Scheduler  *scheduler.Scheduler
	Session    *session.Session
	Rendezvous *channel.Rendezvous
	// Broadcast is the main context's endpoint of the broadcast channel.
	Broadcast *channel.PubSub

	settings config.Settings
	appCtx   appctx.ApplicationContext
	metrics  *metrics.Metrics
}

// InternalState describes the workers, the command cache and the session.
func (a *App) InternalState() *statejson.InternalStateDescription {
	desc := a.Scheduler.Describe()
	desc.Session = a.Session.Describe()
	return &desc
}

func (a *App) KeepAlive(ctx context.Context) {
	a.Scheduler.KeepAlive(ctx)
}

func (a *App) Command(name core.ThreadName, cmd interop.Command) (interop.Response, error) {
	return a.Scheduler.Command(name, cmd)
}

func (a *App) CacheClear() {
	a.Scheduler.CacheClear()
}

// Router returns the debug HTTP router.
func (a *App) Router() http.Handler {
	return api.NewHTTPRouter(a, a.metrics)
}

// RunKeepAlive runs a keep-alive pass every interval until ctx is done.
func (a *App) RunKeepAlive(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Scheduler.KeepAlive(ctx)
		}
	}
}

// Run starts the workers, the keep-alive loop and the debug API, and blocks
// until ctx is done or one of them fails. Workers are stopped before Run
// returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	if name := a.settings.ApplicationName; name != "" && !a.Session.SetApplication(ctx, name) {
		log.WithField("application", name).Warn("Communication worker did not acknowledge application")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.RunKeepAlive(gctx, a.settings.KeepAliveInterval)
	})

	if addr := a.settings.APIAddress; addr != "" {
		srv := &http.Server{Addr: addr, Handler: a.Router()}
		g.Go(func() error {
			log.Infof("Debug API listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := a.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Shutdown closes the session if it is open and stops every worker.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Session.OwnsResource() {
		a.Session.Close(ctx)
	}
	log.Info("Stopping workers")
	return a.Scheduler.StopAll(ctx)
}
