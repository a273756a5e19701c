// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"sync"
)

// clientCapabilitiesKey is the session data key the negotiated
// ClientCapabilities are stashed under during initialize.
const clientCapabilitiesKey = "__client_capabilities"

// lifecycleManager owns the initialize/initialized handshake: negotiating a
// protocol version, advertising server capabilities derived from whatever
// tool/resource/prompt managers are actually wired in, and tracking which
// sessions have completed the handshake.
type lifecycleManager struct {
	mu sync.RWMutex

	serverInfo   Implementation
	instructions string

	toolManager     *toolManager
	resourceManager *resourceManager
	promptManager   *promptManager

	initialized map[string]bool

	// onSessionTerminatedFn is invoked after local bookkeeping is cleared,
	// letting a server bubble the termination further (e.g. to close a
	// transport-level connection).
	onSessionTerminatedFn func(sessionID string)
}

// newLifecycleManager creates a lifecycle manager advertising serverInfo.
func newLifecycleManager(serverInfo Implementation) *lifecycleManager {
	return &lifecycleManager{
		serverInfo:  serverInfo,
		initialized: make(map[string]bool),
	}
}

func (l *lifecycleManager) withToolManager(m *toolManager) *lifecycleManager {
	l.toolManager = m
	return l
}

func (l *lifecycleManager) withResourceManager(m *resourceManager) *lifecycleManager {
	l.resourceManager = m
	return l
}

func (l *lifecycleManager) withPromptManager(m *promptManager) *lifecycleManager {
	l.promptManager = m
	return l
}

func (l *lifecycleManager) withInstructions(instructions string) *lifecycleManager {
	l.instructions = instructions
	return l
}

// capabilities derives the ServerCapabilities to advertise from whichever
// managers are actually wired in. A family is advertised whenever its
// manager is wired in, whether or not anything has been registered in it;
// ListChanged is set only when that manager has a notifier installed.
func (l *lifecycleManager) capabilities() ServerCapabilities {
	caps := ServerCapabilities{}

	if l.toolManager != nil {
		caps.Tools = &ToolsCapability{ListChanged: l.toolManager.notifyListChanged != nil}
	}
	if l.resourceManager != nil {
		caps.Resources = &ResourcesCapability{
			Subscribe:   true,
			ListChanged: l.resourceManager.notifyListChanged != nil,
		}
	}
	if l.promptManager != nil {
		caps.Prompts = &PromptsCapability{ListChanged: l.promptManager.notifyListChanged != nil}
	}

	return caps
}

// initializeParams mirrors the wire shape of an initialize request's params.
type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	ClientInfo      Implementation      `json:"clientInfo"`
	Capabilities    ClientCapabilities  `json:"capabilities"`
}

// handleInitialize negotiates the protocol version and responds with the
// server's identity, capabilities, and usage instructions.
func (l *lifecycleManager) handleInitialize(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	var params initializeParams
	if err := parseJSONRPCParams(req.Params, &params); err != nil {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, "invalid initialize params", err.Error()), nil
	}

	version := params.ProtocolVersion
	if !IsProtocolVersionSupported(version) {
		// Exact-match negotiation failed; fall back to the newest version we
		// speak rather than refuse the handshake outright.
		version = ProtocolVersion_2025_03_26
	}

	sess.SetData(clientCapabilitiesKey, params.Capabilities)
	sess.SetData("protocolVersion", version)

	return NewInitializeResponse(req.ID, version, l.serverInfo, l.capabilities(), l.instructions), nil
}

// handleInitialized marks a session as having completed the handshake.
func (l *lifecycleManager) handleInitialized(ctx context.Context, notification *JSONRPCNotification, sess *Session) error {
	l.mu.Lock()
	l.initialized[sess.ID()] = true
	l.mu.Unlock()
	return nil
}

// isInitialized reports whether a session completed the initialize handshake.
func (l *lifecycleManager) isInitialized(sessionID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized[sessionID]
}

// onSessionTerminated clears a session's handshake state and forwards the
// notification to whatever owns the transport-level connection.
func (l *lifecycleManager) onSessionTerminated(sessionID string) {
	l.mu.Lock()
	delete(l.initialized, sessionID)
	l.mu.Unlock()

	if l.onSessionTerminatedFn != nil {
		l.onSessionTerminatedFn(sessionID)
	}
}
