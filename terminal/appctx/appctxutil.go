// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package appctx

import (
	"time"

	log "github.com/sirupsen/logrus"

	"go.dafunk.io/terminal/fatalerror"
)

// StoreFirstFatalError records err unless an earlier failure was already
// recorded. The first one is treated as the root cause.
func StoreFirstFatalError(appCtx ApplicationContext, err fatalerror.ErrorType) {
	if existing := appCtx.StoreIfNotExists(FirstFatalErrorKey, err); existing != nil {
		log.Warnf("Omitting fatal error %s: %s already stored", err, existing.(fatalerror.ErrorType))
		return
	}
	log.Warnf("First fatal error stored in appctx: %s", err)
}

func LoadFirstFatalError(appCtx ApplicationContext) (fatalerror.ErrorType, bool) {
	v, found := appCtx.Load(FirstFatalErrorKey)
	if !found {
		return "", false
	}
	return v.(fatalerror.ErrorType), true
}

// GetApplicationName returns the application name, empty if not set.
func GetApplicationName(appCtx ApplicationContext) string {
	if v, ok := appCtx.Load(ApplicationNameKey); ok {
		return v.(string)
	}
	return ""
}

func StoreApplicationName(appCtx ApplicationContext, name string) {
	appCtx.Store(ApplicationNameKey, name)
}

// LoadBootTime returns the process start time. The first call records now.
func LoadBootTime(appCtx ApplicationContext) time.Time {
	now := time.Now()
	if existing := appCtx.StoreIfNotExists(BootTimeKey, now); existing != nil {
		return existing.(time.Time)
	}
	return now
}
