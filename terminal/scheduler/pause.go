// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/substrate/model"
)

// Pause blocks until the named worker has parked at its next safe point.
func (s *Scheduler) Pause(ctx context.Context, name core.ThreadName) error {
	st, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := s.substrate.Pause(ctx, st.id); err != nil {
		return fmt.Errorf("pause %s: %w", name, err)
	}
	log.WithField("thread", name).Debug("Worker paused")
	return nil
}

// Resume releases a paused worker. Resuming a running worker is a no-op.
func (s *Scheduler) Resume(name core.ThreadName) error {
	st, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := s.substrate.Continue(st.id); err != nil {
		return fmt.Errorf("resume %s: %w", name, err)
	}
	return nil
}

// Pausing runs body while the named worker is paused. The worker is resumed
// when body returns or panics. A dead worker cannot race with body, so body
// then runs without a pause.
func (s *Scheduler) Pausing(ctx context.Context, name core.ThreadName, body func() error) (err error) {
	if perr := s.Pause(ctx, name); perr != nil {
		if !model.IsKind(perr, model.InvalidState) {
			return perr
		}
		log.WithError(perr).WithField("thread", name).Debug("Running body unpaused")
		return body()
	}
	defer func() {
		if rerr := s.Resume(name); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return body()
}

// PausingCommunication runs body with the communication worker paused when
// that worker owns the shared session resource, and directly otherwise.
func (s *Scheduler) PausingCommunication(ctx context.Context, body func() error) error {
	s.ownerLock.Lock()
	owns := s.ownsResource
	s.ownerLock.Unlock()

	// the worker cannot wait on its own safe point
	if owns == nil || !owns() || s.IsCommunicationThread(ctx) {
		return body()
	}
	return s.Pausing(ctx, core.ThreadCommunication, body)
}
