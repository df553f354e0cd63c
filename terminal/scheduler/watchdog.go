// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/appctx"
	"go.dafunk.io/terminal/fatalerror"
	"go.dafunk.io/terminal/substrate/model"
)

// Watchdog watches worker goroutines. A worker that panics or returns while
// its slot is still live has its slot killed, so the next keep-alive pass
// observes it dead.
type Watchdog struct {
	substrate model.ThreadSubstrate
	appCtx    appctx.ApplicationContext
}

// NewWatchdog returns new instance of a Watchdog.
func NewWatchdog(substrate model.ThreadSubstrate, appCtx appctx.ApplicationContext) *Watchdog {
	return &Watchdog{substrate: substrate, appCtx: appCtx}
}

// GoWait runs handler in a separate goroutine and handles its termination.
// done is closed once the goroutine returns.
func (w *Watchdog) GoWait(ctx context.Context, id model.SlotID, name string, done chan<- struct{}, handler Handler) {
	go func() {
		defer close(done)
		err := w.run(ctx, id, handler)

		if ctx.Err() != nil || w.substrate.Check(id, 0) == model.StatusDead {
			// stopped on purpose
			return
		}

		errorType := fatalerror.WorkerExit
		if _, crashed := err.(*panicError); crashed {
			errorType = fatalerror.WorkerCrash
		}
		if err == nil {
			err = fmt.Errorf("returned without error")
		}
		appctx.StoreFirstFatalError(w.appCtx, errorType)
		log.WithFields(log.Fields{"slot": id, "label": errorType}).Warnf("Worker %s exited: %s", name, err)
		w.substrate.Kill(id)
	}()
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func (w *Watchdog) run(ctx context.Context, id model.SlotID, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debugf("Worker on slot %d panicked: %v\n%s", id, r, debug.Stack())
			err = &panicError{value: r}
		}
	}()
	return handler(ctx, id)
}
