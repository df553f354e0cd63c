// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.dafunk.io/terminal/appctx"
	"go.dafunk.io/terminal/commandcache"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/core/statejson"
	"go.dafunk.io/terminal/fatalerror"
	"go.dafunk.io/terminal/metrics"
	"go.dafunk.io/terminal/substrate/model"
)

// Handler is the body of a worker. It runs until ctx is done or the
// substrate reports the slot dead, calling SafePoint between units of work.
type Handler func(ctx context.Context, id model.SlotID) error

// ErrNoHandler is returned when spawning a role nobody registered a handler for.
var ErrNoHandler = errors.New("NoHandler")

type handle struct {
	runID     string
	spawnedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func (h *handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

type slotState struct {
	name     core.ThreadName
	id       model.SlotID
	role     core.WorkerRole
	handle   *handle
	respawns int
}

// Config wires a Scheduler.
type Config struct {
	Substrate model.ThreadSubstrate
	Handlers  map[core.WorkerRole]Handler
	// StatusBarEnabled gates the status bar worker; nil means enabled.
	StatusBarEnabled func() bool
	AppCtx           appctx.ApplicationContext
	Metrics          *metrics.Metrics
	RespawnBurst     int
	RespawnRate      float64
}

// Scheduler owns the managed workers, their observable status and the
// command protocol to each of them.
type Scheduler struct {
	substrate        model.ThreadSubstrate
	handlers         map[core.WorkerRole]Handler
	statusBarEnabled func() bool
	cache            *commandcache.Cache
	appCtx           appctx.ApplicationContext
	metrics          *metrics.Metrics
	limiter          *respawnLimiter
	watchdog         *Watchdog

	ownerLock    sync.Mutex
	ownsResource func() bool

	mu    sync.Mutex
	slots map[core.ThreadName]*slotState
}

func NewScheduler(cfg Config) *Scheduler {
	appCtx := cfg.AppCtx
	if appCtx == nil {
		appCtx = appctx.NewApplicationContext()
	}
	s := &Scheduler{
		substrate:        cfg.Substrate,
		handlers:         cfg.Handlers,
		statusBarEnabled: cfg.StatusBarEnabled,
		cache:            commandcache.New(),
		appCtx:           appCtx,
		metrics:          cfg.Metrics,
		limiter:          newRespawnLimiter(cfg.RespawnRate, cfg.RespawnBurst),
		slots:            make(map[core.ThreadName]*slotState),
	}
	s.watchdog = NewWatchdog(cfg.Substrate, appCtx)
	for _, name := range core.ManagedThreads {
		id, _ := core.SlotOf(name)
		role, _ := core.RoleOf(name)
		s.slots[name] = &slotState{name: name, id: id, role: role}
	}
	return s
}

// SetResourceOwner installs the check deciding whether the communication
// worker owns the shared session resource.
func (s *Scheduler) SetResourceOwner(owns func() bool) {
	s.ownerLock.Lock()
	defer s.ownerLock.Unlock()
	s.ownsResource = owns
}

func (s *Scheduler) lookup(name core.ThreadName) (*slotState, error) {
	st, ok := s.slots[name]
	if !ok {
		return nil, fmt.Errorf("%w: thread %q not found", core.ErrThreadNotFound, name)
	}
	return st, nil
}

func (s *Scheduler) spawnable(role core.WorkerRole) bool {
	if role == core.RoleStatusBar && s.statusBarEnabled != nil {
		return s.statusBarEnabled()
	}
	return true
}

// Start spawns every managed worker in order.
func (s *Scheduler) Start(ctx context.Context) error {
	var firstErr error
	for _, name := range core.ManagedThreads {
		if err := s.Spawn(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Spawn starts the substrate slot for name and launches its worker. It is a
// no-op when the worker is already running or its precondition fails.
func (s *Scheduler) Spawn(ctx context.Context, name core.ThreadName) error {
	st, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !s.spawnable(st.role) {
		log.WithField("thread", name).Debug("Worker precondition not met, not spawning")
		return nil
	}
	handler, ok := s.handlers[st.role]
	if !ok {
		return fmt.Errorf("%w: role %s", ErrNoHandler, st.role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st.handle != nil && !st.handle.finished() {
		log.WithField("thread", name).Debug("Worker already running")
		return nil
	}
	st.handle = nil

	if err := s.substrate.Start(st.id); err != nil {
		appctx.StoreFirstFatalError(s.appCtx, fatalerror.WorkerSpawnError)
		return fmt.Errorf("start slot %d: %w", st.id, err)
	}

	// workers outlive the request that spawned them
	workerCtx, cancel := context.WithCancel(core.WithRole(context.WithoutCancel(ctx), st.role))
	h := &handle{
		runID:     uuid.New().String(),
		spawnedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	st.handle = h
	s.watchdog.GoWait(workerCtx, st.id, string(name), h.done, handler)
	s.metrics.ObserveSpawn(string(name))

	log.WithFields(log.Fields{"thread": name, "slot": st.id, "run": h.runID}).Info("Worker spawned")
	return nil
}

// Stop signals the slot to stop, blocks until its worker returns and clears
// the handle. Stopping a stopped worker is a no-op.
func (s *Scheduler) Stop(ctx context.Context, name core.ThreadName) error {
	st, err := s.lookup(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	h := st.handle
	s.mu.Unlock()
	if h == nil {
		return nil
	}

	if err := s.substrate.Stop(st.id); err != nil {
		log.WithError(err).WithField("thread", name).Warn("Substrate refused to stop slot")
	}
	if err := s.join(ctx, h); err != nil {
		return fmt.Errorf("join %s: %w", name, err)
	}

	s.mu.Lock()
	if st.handle == h {
		st.handle = nil
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{"thread": name, "run": h.runID}).Info("Worker stopped")
	return nil
}

func (s *Scheduler) join(ctx context.Context, h *handle) error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAll stops every managed worker concurrently.
func (s *Scheduler) StopAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range core.ManagedThreads {
		name := name
		g.Go(func() error {
			return s.Stop(ctx, name)
		})
	}
	return g.Wait()
}

// KeepAlive polls every managed worker and respawns those observed dead.
// Meant to be called periodically by the owner of the scheduler.
func (s *Scheduler) KeepAlive(ctx context.Context) {
	for _, name := range core.ManagedThreads {
		st := s.slots[name]
		if !s.spawnable(st.role) {
			continue
		}
		status, _ := s.CheckStatus(name, 0)
		s.metrics.SetStatus(string(name), int(status))
		if status != core.Dead {
			continue
		}
		if !s.limiter.Allow(string(name), time.Now()) {
			s.metrics.ObserveThrottled(string(name))
			log.WithField("thread", name).Warn("Worker dead, respawn throttled")
			continue
		}

		s.mu.Lock()
		h := st.handle
		s.mu.Unlock()
		if h != nil {
			if err := s.join(ctx, h); err != nil {
				log.WithError(err).WithField("thread", name).Warn("Dead worker did not exit")
				continue
			}
		}

		log.WithField("thread", name).Warn("Worker dead, respawning")
		if err := s.Spawn(ctx, name); err != nil {
			log.WithError(err).WithField("thread", name).Error("Failed to respawn worker")
			continue
		}
		s.mu.Lock()
		st.respawns++
		s.mu.Unlock()
		s.metrics.ObserveRespawn(string(name))
	}
}

// CheckStatus polls the substrate for the status of name, waiting up to
// timeout for an in-flight command exchange to settle. A worker without a
// handle is dead.
func (s *Scheduler) CheckStatus(name core.ThreadName, timeout time.Duration) (core.ThreadStatus, error) {
	st, err := s.lookup(name)
	if err != nil {
		return core.Dead, err
	}
	s.mu.Lock()
	h := st.handle
	s.mu.Unlock()
	if h == nil {
		return core.Dead, nil
	}
	return core.ParseStatus(s.substrate.Check(st.id, timeout)), nil
}

// IsCommunicationThread reports whether ctx belongs to the communication worker.
func (s *Scheduler) IsCommunicationThread(ctx context.Context) bool {
	return core.RoleFromContext(ctx) == core.RoleCommunication
}

// Describe returns the scheduler state for debugging purposes.
func (s *Scheduler) Describe() statejson.InternalStateDescription {
	desc := statejson.InternalStateDescription{
		Cache: make(map[int]map[string]string),
	}
	for _, name := range core.ManagedThreads {
		status, _ := s.CheckStatus(name, 0)
		st := s.slots[name]
		s.mu.Lock()
		td := statejson.ThreadDescription{
			Name:     string(name),
			Slot:     int(st.id),
			Status:   status.String(),
			Respawns: st.respawns,
		}
		if st.handle != nil {
			td.RunID = st.handle.runID
			td.SpawnedAt = st.handle.spawnedAt.UnixNano() / int64(time.Millisecond)
			td.HandleActive = !st.handle.finished()
		}
		s.mu.Unlock()
		desc.Threads = append(desc.Threads, td)
	}
	for slot, entries := range s.cache.Snapshot() {
		desc.Cache[int(slot)] = entries
	}
	if errorType, found := appctx.LoadFirstFatalError(s.appCtx); found {
		desc.FirstFatalError = string(errorType)
	}
	return desc
}
