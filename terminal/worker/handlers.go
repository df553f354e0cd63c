// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/scheduler"
)

// Handlers maps each worker role to the body the scheduler runs for it.
func Handlers(statusBar *StatusBar, communication *Communication) map[core.WorkerRole]scheduler.Handler {
	handlers := make(map[core.WorkerRole]scheduler.Handler)
	if statusBar != nil {
		handlers[core.RoleStatusBar] = statusBar.Run
	}
	if communication != nil {
		handlers[core.RoleCommunication] = communication.Run
	}
	return handlers
}
