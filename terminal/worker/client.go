// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// PaymentClient is the connection to the remote payment host driven by the
// communication worker.
type PaymentClient interface {
	Connect(ctx context.Context) (bool, error)
	Connected() bool
	HandshakeDone() bool
	Handshake(ctx context.Context) (bool, error)
	Close() error
	// Code returns the terminal code presented to the host.
	Code() string
	// Check returns a pending host notice, if any.
	Check(ctx context.Context) (string, bool)
	Set(name, value string) bool
	// Send forwards one payload from the main context to the host.
	Send(ctx context.Context, payload []byte) error
	// Receive returns the next payload from the host, if any.
	Receive(ctx context.Context) ([]byte, bool, error)
}

// LoopbackClient is an in-memory PaymentClient. Every payload sent is queued
// back as the host's answer.
type LoopbackClient struct {
	code string

	mu        sync.Mutex
	connected bool
	handshake bool
	settings  map[string]string
	inbound   [][]byte
	notices   []string
}

// typecheck interface compliance
var _ PaymentClient = (*LoopbackClient)(nil)

func NewLoopbackClient(code string) *LoopbackClient {
	return &LoopbackClient{code: code, settings: make(map[string]string)}
}

func (c *LoopbackClient) Connect(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	log.WithField("component", "loopback").Debug("Connected")
	return true, nil
}

func (c *LoopbackClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *LoopbackClient) HandshakeDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.handshake
}

func (c *LoopbackClient) Handshake(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return false, nil
	}
	c.handshake = true
	return true, nil
}

func (c *LoopbackClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected, c.handshake = false, false
	c.inbound = nil
	return nil
}

func (c *LoopbackClient) Code() string {
	return c.code
}

// Notify queues a host notice returned by the next Check.
func (c *LoopbackClient) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, text)
}

func (c *LoopbackClient) Check(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return "", false
	}
	text := c.notices[0]
	c.notices = c.notices[1:]
	return text, true
}

func (c *LoopbackClient) Set(name, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings[name] = value
	return true
}

// Setting returns a value stored by Set.
func (c *LoopbackClient) Setting(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.settings[name]
	return v, ok
}

func (c *LoopbackClient) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.inbound = append(c.inbound, buf)
	return nil
}

func (c *LoopbackClient) Receive(ctx context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return nil, false, nil
	}
	payload := c.inbound[0]
	c.inbound = c.inbound[1:]
	return payload, true, nil
}
