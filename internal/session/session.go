// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package session holds the per-connection state shared by a session's
// dispatcher: in-flight inbound request cancellation, outgoing request
// correlation, and arbitrary session-scoped key/value data.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingInbound tracks a single in-flight inbound request being handled by
// this session, so it can be cancelled explicitly or on timeout.
type pendingInbound struct {
	cancel context.CancelFunc
}

// Session is the cancellation and bookkeeping core shared by a single
// client<->server connection, independent of the transport carrying it.
type Session struct {
	id string

	mu      sync.Mutex
	pending map[interface{}]*pendingInbound

	dataMu sync.RWMutex
	data   map[string]interface{}

	timeouts *TimeoutManager
	Outgoing *RequestTracker
}

// NewSession creates a Session with its own cancellation bookkeeping, ready
// to track inbound requests and correlate outgoing ones.
func NewSession() *Session {
	s := &Session{
		id:       uuid.NewString(),
		pending:  make(map[interface{}]*pendingInbound),
		data:     make(map[string]interface{}),
		Outgoing: NewRequestTracker(),
	}
	s.timeouts = NewTimeoutManager(func(ids []interface{}) {
		for _, id := range ids {
			s.CancelRequest(id)
		}
	})
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// GetID returns the session's unique identifier (alias for ID, matching the
// accessor name transports and middleware look up on a client session).
func (s *Session) GetID() string {
	return s.id
}

// WithRequest derives a cancellable context for handling the inbound request
// identified by id, tracking it so CancelRequest/CancelAll can interrupt it.
// The returned done func must be called exactly once, regardless of outcome,
// to release the tracking entry; it is safe to call more than once.
func (s *Session) WithRequest(ctx context.Context, id interface{}) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.pending[id] = &pendingInbound{cancel: cancel}
	s.mu.Unlock()

	var once sync.Once
	done := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.pending, id)
			s.mu.Unlock()
			s.timeouts.Cancel(id)
			cancel()
		})
	}
	return reqCtx, done
}

// SetRequestTimeout arranges for the in-flight request id to be cancelled
// after d elapses, unless it completes (via the WithRequest done func) first.
// A no-op if id is not currently tracked.
func (s *Session) SetRequestTimeout(id interface{}, d time.Duration) {
	s.mu.Lock()
	_, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.timeouts.Set(id, d)
}

// ResetRequestTimeout extends id's deadline, used when progress is reported
// on a long-running request so it isn't killed mid-flight.
func (s *Session) ResetRequestTimeout(id interface{}, d time.Duration) {
	s.SetRequestTimeout(id, d)
}

// CancelRequest cancels the in-flight inbound request with the given ID, if
// any. Idempotent: cancelling an unknown or already-completed request, or
// one cancelled twice, is a safe no-op.
func (s *Session) CancelRequest(id interface{}) {
	s.mu.Lock()
	pr, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.timeouts.Cancel(id)
	pr.cancel()
}

// CancelAll cancels every inbound request currently tracked by this session,
// e.g. on session termination or transport disconnect.
func (s *Session) CancelAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[interface{}]*pendingInbound)
	s.mu.Unlock()

	for id, pr := range pending {
		s.timeouts.Cancel(id)
		pr.cancel()
	}
}

// Close releases background resources owned by the session (the timeout
// sweep loop) and cancels any requests still in flight.
func (s *Session) Close() {
	s.CancelAll()
	s.Outgoing.CancelAll(context.Canceled)
	s.timeouts.Stop()
}

// SetData stores a value in the session's key/value scratch space.
func (s *Session) SetData(key string, value interface{}) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.data[key] = value
}

// GetData retrieves a value previously stored with SetData.
func (s *Session) GetData(key string) (interface{}, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// DeleteData removes a key from the session's key/value scratch space.
func (s *Session) DeleteData(key string) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	delete(s.data, key)
}
