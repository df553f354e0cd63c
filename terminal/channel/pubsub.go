// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.dafunk.io/terminal/substrate/model"
)

// ErrTooManySubscribers is returned when the broadcast table is full.
var ErrTooManySubscribers = errors.New("TooManySubscribers")

// noSubscription never matches a subscriber id.
const noSubscription = -1

// PubSub is one endpoint of the broadcast channel. Each endpoint remembers its
// own subscription so its broadcasts skip it by default.
type PubSub struct {
	substrate model.PubSubSubstrate

	mu  sync.Mutex
	own int
}

func NewPubSub(substrate model.PubSubSubstrate) *PubSub {
	return &PubSub{substrate: substrate, own: noSubscription}
}

// Subscribe registers a new listener and retains its id on the endpoint.
func (p *PubSub) Subscribe() (int, error) {
	id, err := p.substrate.Subscribe()
	if err != nil {
		if model.IsKind(err, model.Exhausted) {
			return noSubscription, fmt.Errorf("%w: %s", ErrTooManySubscribers, err)
		}
		return noSubscription, err
	}
	p.mu.Lock()
	p.own = id
	p.mu.Unlock()
	return id, nil
}

// ID returns the endpoint's own subscription, -1 if it never subscribed.
func (p *PubSub) ID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.own
}

// Publish sends text to every listener except avoid, which defaults to the
// endpoint's own subscription.
func (p *PubSub) Publish(text string, avoid ...int) error {
	skip := p.ID()
	if len(avoid) > 0 {
		skip = avoid[0]
	}
	return p.substrate.Publish([]byte(text), skip)
}

// Listen blocks until a message for subscriber id arrives or ctx is done.
func (p *PubSub) Listen(ctx context.Context, id int) (string, error) {
	payload, err := p.substrate.Listen(ctx, id)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
