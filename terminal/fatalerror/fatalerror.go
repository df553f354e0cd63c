// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package fatalerror

// This package labels the failures the scheduler swallows instead of
// propagating. Separate package for namespacing

// ErrorType labels a swallowed failure in logs and in the application context
type ErrorType string

const (
	WorkerCrash        ErrorType = "Worker.Crash"        // worker goroutine panicked
	WorkerExit         ErrorType = "Worker.ExitError"    // worker handler returned an error
	WorkerSpawnError   ErrorType = "Worker.SpawnError"   // substrate refused to start the slot
	WorkerCommandEval  ErrorType = "Worker.CommandEval"  // worker reply could not be decoded
	WorkerCommandServe ErrorType = "Worker.CommandServe" // worker failed while answering a command
	ChannelPump        ErrorType = "Channel.PumpError"   // payload could not be moved between client and channel
	Unknown            ErrorType = "Unknown"
)
