// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/core/statejson"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/metrics"
)

// Controller is what the debug surface inspects and drives.
type Controller interface {
	InternalState() *statejson.InternalStateDescription
	KeepAlive(ctx context.Context)
	Command(name core.ThreadName, cmd interop.Command) (interop.Response, error)
	CacheClear()
}

// NewHTTPRouter returns the debug router. The metrics route is only mounted
// when m is not nil.
func NewHTTPRouter(ctrl Controller, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(accessLogDecorator)

	r.Get("/test/ping", func(w http.ResponseWriter, r *http.Request) { PingHandler(w, r) })
	r.Get("/test/internalState", func(w http.ResponseWriter, r *http.Request) { InternalStateHandler(w, r, ctrl) })
	r.Post("/test/keepAlive", func(w http.ResponseWriter, r *http.Request) { KeepAliveHandler(w, r, ctrl) })
	r.Post("/test/cacheClear", func(w http.ResponseWriter, r *http.Request) { CacheClearHandler(w, r, ctrl) })
	r.Post("/test/command/{thread}", func(w http.ResponseWriter, r *http.Request) { CommandHandler(w, r, ctrl) })
	if m != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	return r
}
