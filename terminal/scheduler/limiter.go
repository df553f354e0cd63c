// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// respawnLimiter applies a token bucket per thread name. A nil limiter
// allows everything.
type respawnLimiter struct {
	limit rate.Limit
	burst int

	mu     sync.Mutex
	byName map[string]*rate.Limiter
}

// newRespawnLimiter returns nil when rps or burst are not positive.
func newRespawnLimiter(rps float64, burst int) *respawnLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &respawnLimiter{
		limit:  rate.Limit(rps),
		burst:  burst,
		byName: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether one respawn of name can happen at now.
func (l *respawnLimiter) Allow(name string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.byName[name]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.byName[name] = lim
	}
	return lim.AllowN(now, 1)
}
