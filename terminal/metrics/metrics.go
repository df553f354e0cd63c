// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dafunk_context"

// Command outcomes
const (
	OutcomeFresh  = "fresh"
	OutcomeCached = "cached"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
)

// Metrics holds the scheduler collectors on a private registry. All methods
// are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	Registry *prometheus.Registry

	spawns    *prometheus.CounterVec
	respawns  *prometheus.CounterVec
	throttled *prometheus.CounterVec
	commands  *prometheus.CounterVec
	status    *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_spawns_total",
			Help:      "Workers spawned, by thread.",
		}, []string{"thread"}),
		respawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_respawns_total",
			Help:      "Workers respawned by keep-alive after being observed dead, by thread.",
		}, []string{"thread"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_respawns_throttled_total",
			Help:      "Keep-alive respawns skipped by the respawn limiter, by thread.",
		}, []string{"thread"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands sent to workers, by verb and outcome.",
		}, []string{"verb", "outcome"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_status",
			Help:      "Last polled worker status (0 dead, 1 alive, 2 paused, 3 blocked).",
		}, []string{"thread"}),
	}
	m.Registry.MustRegister(m.spawns, m.respawns, m.throttled, m.commands, m.status)
	return m
}

func (m *Metrics) ObserveSpawn(thread string) {
	if m == nil {
		return
	}
	m.spawns.WithLabelValues(thread).Inc()
}

func (m *Metrics) ObserveRespawn(thread string) {
	if m == nil {
		return
	}
	m.respawns.WithLabelValues(thread).Inc()
}

func (m *Metrics) ObserveThrottled(thread string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(thread).Inc()
}

func (m *Metrics) ObserveCommand(verb, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb, outcome).Inc()
}

func (m *Metrics) SetStatus(thread string, status int) {
	if m == nil {
		return
	}
	m.status.WithLabelValues(thread).Set(float64(status))
}
