// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"github.com/KotDath/mcpp-sub003/internal/session"
)

// initializeRequestIDKey is the session data key under which the ID of the
// in-flight initialize request is stashed, so a later notifications/cancelled
// can be checked against it: per the MCP lifecycle, initialize must never be
// cancelled.
const initializeRequestIDKey = "__initialize_request_id"

// Session is the per-connection cancellation and correlation state shared
// between a transport and the protocol dispatcher.
type Session = session.Session

// NewSession creates a new session-scoped cancellation and correlation tracker.
func NewSession() *Session {
	return session.NewSession()
}
