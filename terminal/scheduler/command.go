// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/fatalerror"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/metrics"
)

// Command sends cmd to the named worker and returns its reply. When the
// worker does not answer in time the last fresh reply to the same command is
// returned instead, or an empty response if there is none. Volatile commands
// never fall back to the cache.
func (s *Scheduler) Command(name core.ThreadName, cmd interop.Command) (interop.Response, error) {
	st, err := s.lookup(name)
	if err != nil {
		return interop.Empty, err
	}
	verb := cmd.Verb.String()

	raw := s.substrate.Command(st.id, cmd.String())
	resp, cached, err := interop.DecodeReply(raw)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"slot": st.id, "label": fatalerror.WorkerCommandEval}).
			Warnf("Discarding reply to %s", cmd)
		s.metrics.ObserveCommand(verb, metrics.OutcomeError)
		cached = true
	}

	if cached {
		if v, ok := s.cache.Load(st.id, cmd); ok {
			s.metrics.ObserveCommand(verb, metrics.OutcomeCached)
			return v, nil
		}
		s.metrics.ObserveCommand(verb, metrics.OutcomeEmpty)
		return interop.Empty, nil
	}

	s.cache.Store(st.id, cmd, resp)
	s.metrics.ObserveCommand(verb, metrics.OutcomeFresh)
	return resp, nil
}

// CacheClear drops every cached reply.
func (s *Scheduler) CacheClear() {
	s.cache.Clear()
}
