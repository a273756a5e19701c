// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// NotificationHandler processes a notification pushed by the server to a
// connected client, the client-side counterpart of ServerNotificationHandler.
type NotificationHandler func(ctx context.Context, notification *JSONRPCNotification) error

// newJSONRPCRequest builds a request envelope for the given id/method/params.
func newJSONRPCRequest(id interface{}, method string, params interface{}) *JSONRPCRequest {
	return &JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Request: Request{Method: method},
		Params:  params,
	}
}

// rpcErrorEnvelope is the shape a transport wraps a JSON-RPC error into when
// it has to smuggle it through a *json.RawMessage result channel.
type rpcErrorEnvelope struct {
	Error *JSONRPCError `json:"error"`
}

// isErrorResponse reports whether the raw payload returned by a transport's
// sendRequest is an error envelope rather than a method result.
func isErrorResponse(raw *json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var probe struct {
		Error *JSONRPCError `json:"error"`
	}
	if err := json.Unmarshal(*raw, &probe); err != nil {
		return false
	}
	return probe.Error != nil
}

// parseRawMessageToError unmarshals an error envelope produced by isErrorResponse.
func parseRawMessageToError(raw *json.RawMessage) (*rpcErrorEnvelope, error) {
	var envelope rpcErrorEnvelope
	if err := json.Unmarshal(*raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal error envelope: %w", err)
	}
	if envelope.Error == nil {
		return nil, fmt.Errorf("response is not an error envelope")
	}
	return &envelope, nil
}

func parseInitializeResultFromJSON(raw *json.RawMessage) (*InitializeResult, error) {
	var result InitializeResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal InitializeResult: %w", err)
	}
	return &result, nil
}

func parseListToolsResultFromJSON(raw *json.RawMessage) (*ListToolsResult, error) {
	var result ListToolsResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ListToolsResult: %w", err)
	}
	return &result, nil
}

func parseListPromptsResultFromJSON(raw *json.RawMessage) (*ListPromptsResult, error) {
	var result ListPromptsResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ListPromptsResult: %w", err)
	}
	return &result, nil
}

func parseGetPromptResultFromJSON(raw *json.RawMessage) (*GetPromptResult, error) {
	var result GetPromptResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GetPromptResult: %w", err)
	}
	return &result, nil
}

func parseListResourcesResultFromJSON(raw *json.RawMessage) (*ListResourcesResult, error) {
	var result ListResourcesResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ListResourcesResult: %w", err)
	}
	return &result, nil
}

func parseReadResourceResultFromJSON(raw *json.RawMessage) (*ReadResourceResult, error) {
	var result ReadResourceResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ReadResourceResult: %w", err)
	}
	return &result, nil
}
