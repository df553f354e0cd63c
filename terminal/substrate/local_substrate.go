// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package substrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.dafunk.io/terminal/substrate/model"
)

// typecheck interface compliance
var _ model.Substrate = (*LocalSubstrate)(nil)

const (
	// DefaultCommandWait is how long Command waits for the worker to answer
	// before replying with the cache sentinel (20 tries of 10ms).
	DefaultCommandWait = 200 * time.Millisecond

	maxSubscribers = 10
)

type slot struct {
	id     model.SlotID
	status model.StatusCode

	command   string
	response  string
	seq       uint64
	answered  uint64 // seq of the last command the worker answered
	responded chan struct{}

	pauseRequested bool
	pauseAck       chan struct{}
	resumed        chan struct{}

	// closed when the slot is stopped or killed, recreated on start
	done chan struct{}
	// closed and replaced on every status change
	changed chan struct{}
	// buffered, survives restarts so the worker keeps a stable handle
	notify chan struct{}
}

func newSlot(id model.SlotID) *slot {
	done := make(chan struct{})
	close(done)
	return &slot{
		id:        id,
		status:    model.StatusDead,
		responded: make(chan struct{}),
		pauseAck:  make(chan struct{}),
		resumed:   make(chan struct{}),
		done:      done,
		changed:   make(chan struct{}),
		notify:    make(chan struct{}, 1),
	}
}

func (s *slot) setStatusUnsafe(status model.StatusCode) {
	s.status = status
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *slot) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *slot) isDeadUnsafe() bool {
	return s.status == model.StatusDead
}

type message struct {
	event   model.EventID
	payload []byte
}

type queue struct {
	messages []message
	// closed and replaced on every write
	written chan struct{}
}

func newQueue() *queue {
	return &queue{written: make(chan struct{})}
}

func (q *queue) pushUnsafe(m message) {
	q.messages = append(q.messages, m)
	close(q.written)
	q.written = make(chan struct{})
}

func (q *queue) takeUnsafe(event model.EventID) (message, bool) {
	for i, m := range q.messages {
		if event == 0 || m.event == event {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return m, true
		}
	}
	return message{}, false
}

// LocalSubstrate is an in-process execution substrate. Workers are goroutines
// owned by the caller; the substrate only keeps their control blocks and the
// queues used to talk to them.
type LocalSubstrate struct {
	commandWait time.Duration

	slotsLock sync.Mutex
	slots     map[model.SlotID]*slot

	channelsLock sync.Mutex
	channels     map[model.ChannelID]*queue

	subscribersLock sync.Mutex
	subscribers     [maxSubscribers]*queue
}

// NewLocalSubstrate returns a substrate with the status bar and communication
// slots and both rendezvous directions registered.
func NewLocalSubstrate(commandWait time.Duration) *LocalSubstrate {
	if commandWait <= 0 {
		commandWait = DefaultCommandWait
	}
	return &LocalSubstrate{
		commandWait: commandWait,
		slots: map[model.SlotID]*slot{
			model.SlotStatusBar:     newSlot(model.SlotStatusBar),
			model.SlotCommunication: newSlot(model.SlotCommunication),
		},
		channels: map[model.ChannelID]*queue{
			model.ChannelSend: newQueue(),
			model.ChannelRecv: newQueue(),
		},
	}
}

func (s *LocalSubstrate) lookup(id model.SlotID) (*slot, error) {
	sl, ok := s.slots[id]
	if !ok {
		return nil, model.NewError(model.NoSuchEntity, fmt.Sprintf("slot %d", id))
	}
	return sl, nil
}

func (s *LocalSubstrate) Start(id model.SlotID) error {
	s.slotsLock.Lock()
	sl, err := s.lookup(id)
	if err != nil {
		s.slotsLock.Unlock()
		return err
	}
	if !sl.isDeadUnsafe() {
		// release anyone still waiting on the previous generation
		close(sl.done)
	}
	sl.command, sl.response = "", ""
	sl.seq++
	sl.pauseRequested = false
	sl.responded = make(chan struct{})
	sl.pauseAck = make(chan struct{})
	sl.resumed = make(chan struct{})
	sl.done = make(chan struct{})
	sl.setStatusUnsafe(model.StatusAlive)
	s.slotsLock.Unlock()

	// the communication slot owns the rendezvous queues; a fresh start
	// discards whatever the previous worker left behind
	if id == model.SlotCommunication {
		s.channelsLock.Lock()
		for _, q := range s.channels {
			if len(q.messages) > 0 {
				log.Debugf("Discarding %d pending messages on restart", len(q.messages))
			}
			q.messages = nil
		}
		s.channelsLock.Unlock()
	}
	return nil
}

func (s *LocalSubstrate) Stop(id model.SlotID) error {
	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	sl, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.markDeadUnsafe(sl)
	return nil
}

func (s *LocalSubstrate) Kill(id model.SlotID) {
	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	if sl, err := s.lookup(id); err == nil {
		s.markDeadUnsafe(sl)
	}
}

func (s *LocalSubstrate) markDeadUnsafe(sl *slot) {
	if sl.isDeadUnsafe() {
		return
	}
	sl.pauseRequested = false
	sl.setStatusUnsafe(model.StatusDead)
	close(sl.done)
	sl.signal()
}

func (s *LocalSubstrate) Pause(ctx context.Context, id model.SlotID) error {
	s.slotsLock.Lock()
	sl, err := s.lookup(id)
	if err != nil {
		s.slotsLock.Unlock()
		return err
	}
	if sl.isDeadUnsafe() {
		s.slotsLock.Unlock()
		return model.NewError(model.InvalidState, fmt.Sprintf("slot %d is dead", id))
	}
	if sl.status == model.StatusPause {
		s.slotsLock.Unlock()
		return nil
	}
	sl.pauseRequested = true
	ack, done := sl.pauseAck, sl.done
	sl.signal()
	s.slotsLock.Unlock()

	select {
	case <-ack:
		return nil
	case <-done:
		return model.NewError(model.InvalidState, fmt.Sprintf("slot %d stopped while pausing", id))
	case <-ctx.Done():
		s.slotsLock.Lock()
		defer s.slotsLock.Unlock()
		if sl.status == model.StatusPause {
			// acknowledged while we were giving up
			return nil
		}
		sl.pauseRequested = false
		return model.NewError(model.Canceled, ctx.Err().Error())
	}
}

func (s *LocalSubstrate) Continue(id model.SlotID) error {
	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	sl, err := s.lookup(id)
	if err != nil {
		return err
	}
	sl.pauseRequested = false
	if sl.status == model.StatusPause {
		close(sl.resumed)
		sl.resumed = make(chan struct{})
		sl.setStatusUnsafe(model.StatusAlive)
	}
	return nil
}

func (s *LocalSubstrate) SafePoint(ctx context.Context, id model.SlotID) {
	s.slotsLock.Lock()
	sl, err := s.lookup(id)
	if err != nil || !sl.pauseRequested || sl.isDeadUnsafe() {
		s.slotsLock.Unlock()
		return
	}
	sl.pauseRequested = false
	sl.setStatusUnsafe(model.StatusPause)
	close(sl.pauseAck)
	sl.pauseAck = make(chan struct{})
	resumed, done := sl.resumed, sl.done
	s.slotsLock.Unlock()

	log.Debugf("Slot %d paused", id)
	select {
	case <-resumed:
		log.Debugf("Slot %d resumed", id)
	case <-done:
	case <-ctx.Done():
	}
}

func (s *LocalSubstrate) SetBlocked(id model.SlotID, blocked bool) {
	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	sl, err := s.lookup(id)
	if err != nil || sl.isDeadUnsafe() {
		return
	}
	switch {
	case blocked && sl.status == model.StatusAlive:
		sl.setStatusUnsafe(model.StatusBlocked)
	case !blocked && sl.status == model.StatusBlocked:
		sl.setStatusUnsafe(model.StatusAlive)
	}
}

func (s *LocalSubstrate) Check(id model.SlotID, timeout time.Duration) model.StatusCode {
	s.slotsLock.Lock()
	sl, err := s.lookup(id)
	if err != nil {
		s.slotsLock.Unlock()
		return model.StatusDead
	}
	status, changed := sl.status, sl.changed
	s.slotsLock.Unlock()

	if timeout <= 0 || (status != model.StatusCommand && status != model.StatusResponse) {
		return status
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-changed:
		case <-timer.C:
			s.slotsLock.Lock()
			defer s.slotsLock.Unlock()
			return sl.status
		}
		s.slotsLock.Lock()
		status, changed = sl.status, sl.changed
		s.slotsLock.Unlock()
		if status != model.StatusCommand && status != model.StatusResponse {
			return status
		}
	}
}

func (s *LocalSubstrate) Command(id model.SlotID, command string) string {
	s.slotsLock.Lock()
	sl, err := s.lookup(id)
	if err != nil || sl.status != model.StatusAlive {
		s.slotsLock.Unlock()
		return model.ReplyCache
	}
	sl.seq++
	seq := sl.seq
	sl.command, sl.response = command, ""
	sl.responded = make(chan struct{})
	responded, done := sl.responded, sl.done
	sl.setStatusUnsafe(model.StatusCommand)
	sl.signal()
	s.slotsLock.Unlock()

	timer := time.NewTimer(s.commandWait)
	defer timer.Stop()
	select {
	case <-responded:
	case <-done:
	case <-timer.C:
	}

	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	if sl.seq != seq {
		// superseded by a later command on the same slot
		return model.ReplyCache
	}
	response := model.ReplyCache
	if sl.answered == seq {
		// the worker may already have moved on to a safe point
		response = sl.response
	}
	if !sl.isDeadUnsafe() && sl.status != model.StatusPause {
		sl.setStatusUnsafe(model.StatusAlive)
	}
	sl.command, sl.response = "", ""
	return response
}

func (s *LocalSubstrate) Execute(id model.SlotID, handler model.CommandHandler) bool {
	if handler == nil {
		return false
	}
	s.slotsLock.Lock()
	sl, err := s.lookup(id)
	if err != nil || sl.status != model.StatusCommand {
		s.slotsLock.Unlock()
		return false
	}
	command, seq := sl.command, sl.seq
	s.slotsLock.Unlock()

	// the handler may call back into the substrate, run it unlocked
	response := handler(command)

	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	if sl.status != model.StatusCommand || sl.seq != seq {
		log.Debugf("Slot %d dropped late response to %q", id, command)
		return false
	}
	sl.response = response
	sl.answered = seq
	sl.setStatusUnsafe(model.StatusResponse)
	close(sl.responded)
	return true
}

func (s *LocalSubstrate) Notify(id model.SlotID) <-chan struct{} {
	s.slotsLock.Lock()
	defer s.slotsLock.Unlock()
	sl, err := s.lookup(id)
	if err != nil {
		return nil
	}
	return sl.notify
}

func (s *LocalSubstrate) Write(channel model.ChannelID, event model.EventID, payload []byte) error {
	s.channelsLock.Lock()
	defer s.channelsLock.Unlock()
	q, ok := s.channels[channel]
	if !ok {
		return model.NewError(model.NoSuchEntity, fmt.Sprintf("channel %d", channel))
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	q.pushUnsafe(message{event: event, payload: buf})
	return nil
}

func (s *LocalSubstrate) Read(ctx context.Context, channel model.ChannelID, event model.EventID) (model.EventID, []byte, error) {
	for {
		s.channelsLock.Lock()
		q, ok := s.channels[channel]
		if !ok {
			s.channelsLock.Unlock()
			return 0, nil, model.NewError(model.NoSuchEntity, fmt.Sprintf("channel %d", channel))
		}
		if m, found := q.takeUnsafe(event); found {
			s.channelsLock.Unlock()
			return m.event, m.payload, nil
		}
		written := q.written
		s.channelsLock.Unlock()

		select {
		case <-written:
		case <-ctx.Done():
			return event, nil, model.NewError(model.Canceled, ctx.Err().Error())
		}
	}
}

func (s *LocalSubstrate) Subscribe() (int, error) {
	s.subscribersLock.Lock()
	defer s.subscribersLock.Unlock()
	for id, q := range s.subscribers {
		if q == nil {
			s.subscribers[id] = newQueue()
			return id, nil
		}
	}
	return -1, model.NewError(model.Exhausted, fmt.Sprintf("%d subscribers", maxSubscribers))
}

func (s *LocalSubstrate) Publish(payload []byte, avoid int) error {
	s.subscribersLock.Lock()
	defer s.subscribersLock.Unlock()
	for id, q := range s.subscribers {
		if q == nil || id == avoid {
			continue
		}
		buf := make([]byte, len(payload))
		copy(buf, payload)
		q.pushUnsafe(message{payload: buf})
	}
	return nil
}

func (s *LocalSubstrate) Listen(ctx context.Context, id int) ([]byte, error) {
	for {
		s.subscribersLock.Lock()
		if id < 0 || id >= maxSubscribers || s.subscribers[id] == nil {
			s.subscribersLock.Unlock()
			return nil, model.NewError(model.NoSuchEntity, fmt.Sprintf("subscriber %d", id))
		}
		q := s.subscribers[id]
		if m, found := q.takeUnsafe(0); found {
			s.subscribersLock.Unlock()
			return m.payload, nil
		}
		written := q.written
		s.subscribersLock.Unlock()

		select {
		case <-written:
		case <-ctx.Done():
			return nil, model.NewError(model.Canceled, ctx.Err().Error())
		}
	}
}
