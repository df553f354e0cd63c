// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"fmt"

	"go.dafunk.io/terminal/substrate/model"
)

// ThreadName is the external name of a managed worker.
type ThreadName string

const (
	ThreadStatusBar     ThreadName = "status_bar"
	ThreadCommunication ThreadName = "communication"
)

// ManagedThreads lists the workers in spawn order.
var ManagedThreads = []ThreadName{ThreadStatusBar, ThreadCommunication}

// ErrThreadNotFound is returned for a thread name outside ManagedThreads.
var ErrThreadNotFound = errors.New("ThreadNotFound")

var slots = map[ThreadName]model.SlotID{
	ThreadStatusBar:     model.SlotStatusBar,
	ThreadCommunication: model.SlotCommunication,
}

// SlotOf maps an external thread name to its substrate slot.
func SlotOf(name ThreadName) (model.SlotID, error) {
	id, ok := slots[name]
	if !ok {
		return 0, fmt.Errorf("%w: thread %q not found", ErrThreadNotFound, name)
	}
	return id, nil
}

// WorkerRole selects the handler a spawned worker runs.
type WorkerRole int

const (
	RoleMain WorkerRole = iota
	RoleStatusBar
	RoleCommunication
)

func (r WorkerRole) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleStatusBar:
		return string(ThreadStatusBar)
	case RoleCommunication:
		return string(ThreadCommunication)
	}
	return fmt.Sprintf("WorkerRole(%d)", int(r))
}

// RoleOf returns the role played by the worker with the given name.
func RoleOf(name ThreadName) (WorkerRole, error) {
	switch name {
	case ThreadStatusBar:
		return RoleStatusBar, nil
	case ThreadCommunication:
		return RoleCommunication, nil
	}
	return RoleMain, fmt.Errorf("%w: thread %q not found", ErrThreadNotFound, name)
}

type roleCtxKey struct{}

// WithRole marks ctx as belonging to a worker of the given role.
func WithRole(ctx context.Context, role WorkerRole) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, role)
}

// RoleFromContext returns the role carried by ctx, RoleMain if none.
func RoleFromContext(ctx context.Context) WorkerRole {
	if role, ok := ctx.Value(roleCtxKey{}).(WorkerRole); ok {
		return role
	}
	return RoleMain
}

// ThreadStatus is the observable status of a worker.
type ThreadStatus int

const (
	Dead ThreadStatus = iota
	Alive
	Paused
	Blocked
)

// String values of possible thread states
const (
	ThreadDeadStatusName    = "Dead"
	ThreadAliveStatusName   = "Alive"
	ThreadPausedStatusName  = "Paused"
	ThreadBlockedStatusName = "Blocked"
)

func (s ThreadStatus) String() string {
	switch s {
	case Alive:
		return ThreadAliveStatusName
	case Paused:
		return ThreadPausedStatusName
	case Blocked:
		return ThreadBlockedStatusName
	}
	return ThreadDeadStatusName
}

// ParseStatus maps a raw substrate status code. Codes outside the table are
// treated as dead.
func ParseStatus(code model.StatusCode) ThreadStatus {
	switch code {
	case model.StatusAlive, model.StatusCommand, model.StatusResponse:
		return Alive
	case model.StatusPause:
		return Paused
	case model.StatusBlocked:
		return Blocked
	}
	return Dead
}
