// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import "context"

// serverContextKey is the context key under which a transport stashes the
// server instance handling the current request.
type serverContextKey struct{}

// transportSessionContextKey is the context key under which a transport
// stashes its own connection-scoped session value (e.g. *sseSession,
// *stdioSession), as opposed to the protocol-level *Session reachable via
// ClientSessionFromContext.
type transportSessionContextKey struct{}

// setServerToContext stashes the server instance handling the current
// request so handlers and middleware can reach it without a global.
func setServerToContext(ctx context.Context, srv interface{}) context.Context {
	return context.WithValue(ctx, serverContextKey{}, srv)
}

// ServerFromContext retrieves the server instance stashed by setServerToContext.
func ServerFromContext(ctx context.Context) (interface{}, bool) {
	srv := ctx.Value(serverContextKey{})
	return srv, srv != nil
}

// setSessionToContext stashes a transport's own connection-scoped session
// value in the context, retrievable via GetSessionFromContext.
func setSessionToContext(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, transportSessionContextKey{}, session)
}

// GetSessionFromContext retrieves the transport-specific session value
// stashed by setSessionToContext.
func GetSessionFromContext(ctx context.Context) (interface{}, bool) {
	session := ctx.Value(transportSessionContextKey{})
	return session, session != nil
}

// baseMessage captures just enough of a raw JSON-RPC payload to classify it
// as a request, notification, or response before fully unmarshaling it.
type baseMessage struct {
	ID     interface{} `json:"id"`
	Method string      `json:"method"`
}

// NewJSONRPCNotificationFromMap builds a notification from a plain
// parameter map, the shape servers and clients use when emitting
// notifications constructed from user-supplied data.
func NewJSONRPCNotificationFromMap(method string, params map[string]interface{}) *JSONRPCNotification {
	notification := &JSONRPCNotification{
		JSONRPC: JSONRPCVersion,
		Notification: Notification{
			Method: method,
		},
	}
	if len(params) > 0 {
		notification.Params.AdditionalFields = params
	}
	return notification
}
