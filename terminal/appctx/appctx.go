// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package appctx

import (
	"sync"
)

// Key identifies a value shared across the terminal context.
type Key int

const (
	// FirstFatalErrorKey holds the first unrecoverable worker failure,
	// reported by the internal state endpoint.
	FirstFatalErrorKey Key = iota
	// ApplicationNameKey holds the application the workers are serving.
	ApplicationNameKey
	// BootTimeKey holds the process start time.
	BootTimeKey
)

// ApplicationContext holds the values the scheduler, the session and the
// debug API share. The composition root owns the only instance.
type ApplicationContext interface {
	Store(key Key, value interface{})
	Load(key Key) (value interface{}, ok bool)
	// StoreIfNotExists stores value and returns nil when key is unset,
	// otherwise it returns the existing value untouched.
	StoreIfNotExists(key Key, value interface{}) interface{}
}

type valueTable struct {
	mu     sync.RWMutex
	values map[Key]interface{}
}

// NewApplicationContext returns an empty application context.
func NewApplicationContext() ApplicationContext {
	return &valueTable{values: map[Key]interface{}{}}
}

func (t *valueTable) Store(key Key, value interface{}) {
	t.mu.Lock()
	t.values[key] = value
	t.mu.Unlock()
}

func (t *valueTable) Load(key Key) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	value, ok := t.values[key]
	return value, ok
}

func (t *valueTable) StoreIfNotExists(key Key, value interface{}) interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.values[key]; ok {
		return existing
	}
	t.values[key] = value
	return nil
}
