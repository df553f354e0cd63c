// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/substrate/model"
)

const defaultRefresh = time.Second

// Notice is one update for the status bar.
type Notice struct {
	Text string
	At   time.Time
	// Refresh marks a periodic redraw rather than a broadcast message.
	Refresh bool
}

// Renderer draws the status bar.
type Renderer interface {
	Render(ctx context.Context, notice Notice) error
}

// LogRenderer renders the status bar into the log.
type LogRenderer struct{}

func (LogRenderer) Render(ctx context.Context, notice Notice) error {
	if notice.Refresh {
		log.WithField("component", "status_bar").Trace("Refresh")
		return nil
	}
	log.WithField("component", "status_bar").Info(notice.Text)
	return nil
}

// StatusBar is the status bar worker. It renders broadcast notices and a
// periodic refresh.
type StatusBar struct {
	substrate model.ThreadSubstrate
	pubsub    *channel.PubSub
	renderer  Renderer
	refresh   time.Duration
	now       func() time.Time
}

func NewStatusBar(substrate model.ThreadSubstrate, pubsub *channel.PubSub, renderer Renderer, refresh time.Duration) *StatusBar {
	if renderer == nil {
		renderer = LogRenderer{}
	}
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	return &StatusBar{
		substrate: substrate,
		pubsub:    pubsub,
		renderer:  renderer,
		refresh:   refresh,
		now:       time.Now,
	}
}

// Run is the worker body. It returns when ctx is done or the slot is dead.
// The broadcast subscription is taken once and kept across respawns.
func (s *StatusBar) Run(ctx context.Context, id model.SlotID) error {
	subscription := s.pubsub.ID()
	if subscription < 0 {
		var err error
		if subscription, err = s.pubsub.Subscribe(); err != nil {
			return fmt.Errorf("status bar subscribe: %w", err)
		}
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	notices := make(chan string)
	go func() {
		for {
			text, err := s.pubsub.Listen(listenCtx, subscription)
			if err != nil {
				return
			}
			select {
			case notices <- text:
			case <-listenCtx.Done():
				return
			}
		}
	}()

	notify := s.substrate.Notify(id)
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		var notice *Notice
		select {
		case <-ctx.Done():
			return nil
		case <-notify:
		case <-ticker.C:
			notice = &Notice{At: s.now(), Refresh: true}
		case text := <-notices:
			notice = &Notice{Text: text, At: s.now()}
		}
		if s.substrate.Check(id, 0) == model.StatusDead {
			return nil
		}
		// the status bar holds no state worth asking about
		s.substrate.Execute(id, func(string) string { return model.ReplyCache })
		s.substrate.SafePoint(ctx, id)
		if notice != nil {
			if err := s.renderer.Render(ctx, *notice); err != nil {
				log.WithError(err).WithField("slot", id).Warn("Failed to render status bar")
			}
		}
	}
}
