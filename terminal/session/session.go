// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package session implements the connection and handshake protocol of the
// communication worker and a merged readiness check, on top of the scheduler
// command protocol and the rendezvous channel.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.dafunk.io/terminal/appctx"
	"go.dafunk.io/terminal/channel"
	"go.dafunk.io/terminal/config"
	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/core/statejson"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/substrate/model"
)

// ErrConnectRefused is returned when the communication worker did not confirm
// a connect.
var ErrConnectRefused = errors.New("ConnectRefused")

// Commander sends commands to the managed workers.
type Commander interface {
	Command(name core.ThreadName, cmd interop.Command) (interop.Response, error)
	CacheClear()
}

// Network reports whether the device network is up.
type Network interface {
	Connected() bool
}

// FallbackPolicy decides whether a caller with nothing from this session
// should try the primary communication path instead.
type FallbackPolicy interface {
	PrimaryTry() bool
}

// CancelRequested reports whether the user asked to abandon a wait. It is
// polled once per handshake poll iteration.
type CancelRequested func() bool

// CheckResult is the outcome of Check. At most one of Message and
// PrimaryCommunication is set.
type CheckResult struct {
	Message []byte
	// PrimaryCommunication asks the caller to use the primary communication
	// path instead of this session.
	PrimaryCommunication bool
}

// Empty reports whether the check produced nothing.
func (r CheckResult) Empty() bool {
	return r.Message == nil && !r.PrimaryCommunication
}

// Config wires a Session.
type Config struct {
	Commander  Commander
	Rendezvous *channel.Rendezvous
	Params     *config.Params
	Network    Network
	Fallback   FallbackPolicy
	Cancel     CancelRequested
	AppCtx     appctx.ApplicationContext
	Settings   config.Settings
}

// Session is the main context's handle on the communication worker. One
// Session exists per process, created by the composition root.
type Session struct {
	commander  Commander
	rendezvous *channel.Rendezvous
	params     *config.Params
	network    Network
	fallback   FallbackPolicy
	cancel     CancelRequested
	appCtx     appctx.ApplicationContext

	connectWindow    time.Duration
	bootWindow       time.Duration
	recvTimeout      time.Duration
	pollInterval     time.Duration
	checkReadTimeout time.Duration
	handshakeMocked  bool

	now func() time.Time

	mu              sync.Mutex
	bootTime        time.Time
	booting         bool
	connecting      bool
	connectingUntil time.Time
	active          bool
}

func NewSession(cfg Config) *Session {
	appCtx := cfg.AppCtx
	if appCtx == nil {
		appCtx = appctx.NewApplicationContext()
	}
	params := cfg.Params
	if params == nil {
		params = config.NewParams(nil)
	}
	settings := withDefaults(cfg.Settings)
	return &Session{
		commander:        cfg.Commander,
		rendezvous:       cfg.Rendezvous,
		params:           params,
		network:          cfg.Network,
		fallback:         cfg.Fallback,
		cancel:           cfg.Cancel,
		appCtx:           appCtx,
		connectWindow:    settings.ConnectWindow,
		bootWindow:       settings.BootWindow,
		recvTimeout:      settings.RecvTimeout,
		pollInterval:     settings.HandshakePollInterval,
		checkReadTimeout: settings.CheckReadTimeout,
		handshakeMocked:  settings.HandshakeMocked,
		now:              time.Now,
		bootTime:         appctx.LoadBootTime(appCtx),
		booting:          true,
	}
}

// withDefaults replaces non-positive session timings with the defaults.
func withDefaults(settings config.Settings) config.Settings {
	defaults := config.DefaultSettings()
	for _, d := range []struct {
		value    *time.Duration
		fallback time.Duration
	}{
		{&settings.ConnectWindow, defaults.ConnectWindow},
		{&settings.BootWindow, defaults.BootWindow},
		{&settings.RecvTimeout, defaults.RecvTimeout},
		{&settings.HandshakePollInterval, defaults.HandshakePollInterval},
		{&settings.CheckReadTimeout, defaults.CheckReadTimeout},
	} {
		if *d.value <= 0 {
			*d.value = d.fallback
		}
	}
	return settings
}

func (s *Session) command(cmd interop.Command) interop.Response {
	resp, err := s.commander.Command(core.ThreadCommunication, cmd)
	if err != nil {
		log.WithError(err).Warnf("Command %s failed", cmd)
		return interop.Empty
	}
	return resp
}

// Booting is true for the boot window after process start, then permanently
// false.
func (s *Session) Booting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booting && s.bootTime.Add(s.bootWindow).Before(s.now()) {
		s.booting = false
	}
	return s.booting
}

// Connect opens the connect debounce window and asks the worker to connect.
// Within the window connectivity queries assume the connection is coming up.
func (s *Session) Connect(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	s.connecting = true
	s.connectingUntil = s.now().Add(s.connectWindow)
	s.active = true
	s.mu.Unlock()

	if !s.command(interop.Connect).Truthy() {
		return nil, ErrConnectRefused
	}
	log.Debug("Connect accepted")
	return s, nil
}

// connectionCache short-circuits to true while the connect window is open and
// runs query otherwise.
func (s *Session) connectionCache(query func() bool) bool {
	s.mu.Lock()
	if s.connecting && s.connectingUntil.After(s.now()) {
		s.mu.Unlock()
		return true
	}
	s.connecting = false
	s.mu.Unlock()
	return query()
}

// Connected reports whether the worker is connected, debounced by the connect
// window.
func (s *Session) Connected(ctx context.Context) bool {
	return s.connectionCache(func() bool {
		return s.command(interop.ConnectedQuery).Truthy()
	})
}

// HandshakeDone reports whether the handshake with the host completed. When
// connected it polls the worker until it reports true, the receive timeout
// elapses, ctx is done or a cancel is requested.
func (s *Session) HandshakeDone(ctx context.Context) bool {
	if s.handshakeMocked {
		return true
	}
	return s.connectionCache(func() bool {
		if !s.Connected(ctx) {
			return false
		}
		deadline := s.now().Add(s.recvTimeout)
		for {
			if s.command(interop.HandshakeQuery).Truthy() {
				return true
			}
			if s.now().After(deadline) || (s.cancel != nil && s.cancel()) {
				log.Debug("Handshake wait abandoned")
				return false
			}
			select {
			case <-ctx.Done():
				return false
			case <-time.After(s.pollInterval):
			}
		}
	})
}

// Handshake asks the worker to run the handshake with the host.
func (s *Session) Handshake(ctx context.Context) bool {
	return s.command(interop.Handshake).Truthy()
}

// HandshakeResponse returns the credential presented during handshake, false
// when no access token is configured.
func (s *Session) HandshakeResponse() (string, bool) {
	token, ok := s.params.Get(config.AccessTokenParam)
	if !ok {
		return "", false
	}
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		log.WithError(err).Warn("Failed to encode handshake response")
		return "", false
	}
	return string(body), true
}

// Check returns the next inbound payload when the network is up, the session
// is connected and the handshake is done. With nothing to return and the
// fallback policy asking for it, the result points the caller to the primary
// communication path.
func (s *Session) Check(ctx context.Context) CheckResult {
	var message []byte
	if (s.network == nil || s.network.Connected()) && s.Connected(ctx) && s.HandshakeDone(ctx) {
		readCtx, cancel := context.WithTimeout(ctx, s.checkReadTimeout)
		_, payload, err := s.Read(readCtx)
		cancel()
		if err == nil {
			message = payload
		}
	}
	if message == nil && s.fallback != nil && s.fallback.PrimaryTry() {
		return CheckResult{PrimaryCommunication: true}
	}
	return CheckResult{Message: message}
}

// Close clears every cached command reply and asks the worker to close.
func (s *Session) Close(ctx context.Context) bool {
	s.commander.CacheClear()
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return s.command(interop.Close).Truthy()
}

// Write hands payload to the communication worker.
func (s *Session) Write(ctx context.Context, payload []byte) (model.EventID, error) {
	return s.rendezvous.Write(ctx, channel.Send, payload)
}

// Read blocks until the answer to the last write arrives or ctx is done.
func (s *Session) Read(ctx context.Context) (model.EventID, []byte, error) {
	return s.rendezvous.Read(ctx, channel.Recv)
}

// SetApplication tells the worker which application it is serving.
func (s *Session) SetApplication(ctx context.Context, name string) bool {
	appctx.StoreApplicationName(s.appCtx, name)
	return s.command(interop.Set("app", name)).Truthy()
}

// Code returns the terminal code reported by the worker, false when the
// worker did not answer.
func (s *Session) Code(ctx context.Context) (string, bool) {
	resp := s.command(interop.Code)
	if resp.Kind != interop.ResponseText {
		return "", false
	}
	return resp.Text, true
}

// OwnsResource reports whether the session has an open connection through
// the communication worker, in which case the main context must pause that
// worker before mutating session state.
func (s *Session) OwnsResource() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Describe returns the session state for debugging purposes.
func (s *Session) Describe() *statejson.SessionDescription {
	booting := s.Booting()
	s.mu.Lock()
	defer s.mu.Unlock()
	desc := &statejson.SessionDescription{
		Booting:         booting,
		Connecting:      s.connecting && s.connectingUntil.After(s.now()),
		ApplicationName: appctx.GetApplicationName(s.appCtx),
	}
	if desc.Connecting {
		desc.ConnectingUntil = s.connectingUntil.UnixNano() / int64(time.Millisecond)
	}
	return desc
}
