// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package commandcache keeps the last decoded answer of every cacheable
// command, per worker slot. A cached value is only ever replaced by another
// decoded value, never by an absence-of-data reply.
package commandcache

import (
	"sync"

	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/substrate/model"
)

// volatile commands always re-query the worker
var volatile = map[interop.Verb]bool{
	interop.VerbCode: true,
}

// Cacheable reports whether answers to cmd may be served from the cache.
func Cacheable(cmd interop.Command) bool {
	return !volatile[cmd.Verb]
}

type key struct {
	slot    model.SlotID
	command string
}

type Cache struct {
	mu      sync.Mutex
	entries map[key]interop.Response
}

func New() *Cache {
	return &Cache{entries: make(map[key]interop.Response)}
}

// Store records resp as the last known answer to cmd. Non-cacheable commands
// are ignored.
func (c *Cache) Store(slot model.SlotID, cmd interop.Command, resp interop.Response) {
	if !Cacheable(cmd) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key{slot, cmd.String()}] = resp
}

// Load returns the last known answer to cmd.
func (c *Cache) Load(slot model.SlotID, cmd interop.Command) (interop.Response, bool) {
	if !Cacheable(cmd) {
		return interop.Empty, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[key{slot, cmd.String()}]
	return resp, ok
}

// Clear drops every entry of every slot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[key]interop.Response)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns a copy of the cache keyed by slot and wire command.
func (c *Cache) Snapshot() map[model.SlotID]map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[model.SlotID]map[string]string)
	for k, v := range c.entries {
		if out[k.slot] == nil {
			out[k.slot] = make(map[string]string)
		}
		out[k.slot][k.command] = v.Encode()
	}
	return out
}
