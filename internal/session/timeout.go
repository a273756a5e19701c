// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package session

import (
	"sync"
	"time"
)

// sweepInterval bounds how stale an expired deadline can go unnoticed.
const sweepInterval = 100 * time.Millisecond

// TimeoutManager tracks per-request deadlines on a monotonic clock and
// sweeps expired ones on a fixed ticker, independent of completion order.
type TimeoutManager struct {
	mu       sync.Mutex
	deadline map[interface{}]time.Time
	stop     chan struct{}
	stopOnce sync.Once
	onExpire func(ids []interface{})
}

// NewTimeoutManager starts the sweep loop immediately. onExpire is invoked
// with the batch of IDs that expired on a given tick; it may be nil.
func NewTimeoutManager(onExpire func(ids []interface{})) *TimeoutManager {
	tm := &TimeoutManager{
		deadline: make(map[interface{}]time.Time),
		stop:     make(chan struct{}),
		onExpire: onExpire,
	}
	go tm.loop()
	return tm
}

func (tm *TimeoutManager) loop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if expired := tm.Sweep(); len(expired) > 0 && tm.onExpire != nil {
				tm.onExpire(expired)
			}
		case <-tm.stop:
			return
		}
	}
}

// Set arranges for id to expire d from now.
func (tm *TimeoutManager) Set(id interface{}, d time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.deadline[id] = time.Now().Add(d)
}

// Cancel removes any pending deadline for id. Idempotent.
func (tm *TimeoutManager) Cancel(id interface{}) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.deadline, id)
}

// Sweep returns and clears every ID whose deadline has passed.
func (tm *TimeoutManager) Sweep() []interface{} {
	now := time.Now()
	tm.mu.Lock()
	defer tm.mu.Unlock()
	var expired []interface{}
	for id, dl := range tm.deadline {
		if !now.Before(dl) {
			expired = append(expired, id)
			delete(tm.deadline, id)
		}
	}
	return expired
}

// Stop terminates the sweep loop. Safe to call more than once.
func (tm *TimeoutManager) Stop() {
	tm.stopOnce.Do(func() { close(tm.stop) })
}
