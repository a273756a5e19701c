// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package session

import (
	"sync"
	"sync/atomic"
)

// PendingCallback resolves an outgoing request once a matching response
// arrives, or once the tracker gives up on it (err set, result nil).
type PendingCallback func(result interface{}, err error)

// RequestTracker correlates outgoing JSON-RPC requests sent to a peer with
// the callback that resolves them when the matching response arrives.
type RequestTracker struct {
	counter uint64
	mu      sync.Mutex
	pending map[interface{}]PendingCallback
}

// NewRequestTracker creates an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{pending: make(map[interface{}]PendingCallback)}
}

// Allocate mints the next outgoing request ID.
func (t *RequestTracker) Allocate() uint64 {
	return atomic.AddUint64(&t.counter, 1)
}

// Register records the callback to invoke when id's response arrives.
func (t *RequestTracker) Register(id interface{}, cb PendingCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = cb
}

// Complete removes and returns the callback registered for id so the caller
// can invoke it outside the tracker's lock. ok is false if id was never
// registered or was already completed.
func (t *RequestTracker) Complete(id interface{}) (cb PendingCallback, ok bool) {
	t.mu.Lock()
	cb, ok = t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	return cb, ok
}

// CancelAll completes every still-pending request with err, invoking each
// callback outside the tracker's lock.
func (t *RequestTracker) CancelAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[interface{}]PendingCallback)
	t.mu.Unlock()
	for _, cb := range pending {
		cb(nil, err)
	}
}

// Len reports the number of requests currently awaiting a response.
func (t *RequestTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
