// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
	"sync"
)

// ElicitAction is the client's disposition towards an elicitation request.
type ElicitAction string

const (
	ElicitActionAccept  ElicitAction = "accept"
	ElicitActionDecline ElicitAction = "decline"
	ElicitActionCancel  ElicitAction = "cancel"
	// ElicitActionPending is returned by a URL-mode handler to indicate the
	// browser/app was opened but the user hasn't responded yet; it is never
	// a final result delivered to CompleteElicitation callers.
	ElicitActionPending ElicitAction = "pending"
)

// ElicitationPrimitiveSchema restricts form fields to the spec's flat
// primitive shape: no nested objects, only {string, number, integer,
// boolean, array-of-primitive} with an optional default.
type ElicitationPrimitiveSchema struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Items       *struct {
		Type string `json:"type"`
	} `json:"items,omitempty"`
}

// ElicitationCreateParams is the payload of an inbound elicitation/create
// request. Exactly one of RequestedSchema (form mode) or URL (URL mode) is
// populated.
type ElicitationCreateParams struct {
	ElicitationID   string                                `json:"elicitationId"`
	Message         string                                `json:"message"`
	RequestedSchema map[string]ElicitationPrimitiveSchema `json:"requestedSchema,omitempty"`
	URL             string                                `json:"url,omitempty"`
}

// IsURLMode reports whether params describes a URL-mode elicitation.
func (p *ElicitationCreateParams) IsURLMode() bool {
	return p.URL != ""
}

// ElicitResult is the outcome of an elicitation, whether returned
// synchronously (form mode) or delivered later via the completion
// notification (URL mode).
type ElicitResult struct {
	Action  ElicitAction           `json:"action"`
	Content map[string]interface{} `json:"content,omitempty"`
}

// ElicitationCompleteParams is the payload of the
// notifications/elicitation/complete notification that resolves a
// URL-mode elicitation.
type ElicitationCompleteParams struct {
	ElicitationID string       `json:"elicitationId"`
	Result        ElicitResult `json:"result"`
}

// ElicitationHandler answers an inbound elicitation/create request. For
// form mode it returns the final ElicitResult synchronously. For URL mode
// it opens/displays params.URL and returns immediately with
// ElicitActionPending; the eventual user decision arrives later through
// notifications/elicitation/complete.
type ElicitationHandler interface {
	HandleElicitation(ctx context.Context, params *ElicitationCreateParams) (*ElicitResult, error)
}

// ElicitationHandlerFunc adapts a plain function to ElicitationHandler.
type ElicitationHandlerFunc func(ctx context.Context, params *ElicitationCreateParams) (*ElicitResult, error)

func (f ElicitationHandlerFunc) HandleElicitation(ctx context.Context, params *ElicitationCreateParams) (*ElicitResult, error) {
	return f(ctx, params)
}

// clientElicitationSupport tracks an owning client's elicitation handler and
// the URL-mode elicitations still awaiting a completion notification. The
// owner is either a *Client or a *StdioClient; both wire the same support
// struct through a thin per-type method so the bookkeeping lives in one
// place regardless of transport.
type clientElicitationSupport struct {
	handler ElicitationHandler

	mu      sync.Mutex
	pending map[string]chan *ElicitResult

	registerOnce sync.Once
}

// notificationRegistrar is satisfied by both *Client and *StdioClient.
type notificationRegistrar interface {
	RegisterNotificationHandler(method string, handler NotificationHandler)
}

var (
	clientElicitationMu  sync.Mutex
	clientElicitationMap = make(map[interface{}]*clientElicitationSupport)
)

// elicitationSupportFor returns the elicitation bookkeeping for owner,
// creating it on first use. owner must be a *Client or *StdioClient.
func elicitationSupportFor(owner interface{}) *clientElicitationSupport {
	clientElicitationMu.Lock()
	defer clientElicitationMu.Unlock()
	support, ok := clientElicitationMap[owner]
	if !ok {
		support = &clientElicitationSupport{pending: make(map[string]chan *ElicitResult)}
		clientElicitationMap[owner] = support
	}
	return support
}

// WithElicitationHandler installs the handler invoked for inbound
// elicitation/create requests.
func WithElicitationHandler(handler ElicitationHandler) ClientOption {
	return func(c *Client) {
		support := elicitationSupportFor(c)
		support.handler = handler
	}
}

// WithStdioElicitationHandler installs the handler invoked for inbound
// elicitation/create requests on a StdioClient.
func WithStdioElicitationHandler(c *StdioClient, handler ElicitationHandler) {
	support := elicitationSupportFor(c)
	support.handler = handler
}

// CleanupClientElicitation drops the elicitation bookkeeping for an owner
// (*Client or *StdioClient), mirroring CleanupClientSampling.
func CleanupClientElicitation(owner interface{}) {
	clientElicitationMu.Lock()
	defer clientElicitationMu.Unlock()
	delete(clientElicitationMap, owner)
}

// handleElicitationCreate answers an inbound elicitation/create request on
// behalf of owner. URL-mode requests are registered in the pending table
// before the handler is invoked, so a completion notification racing the
// handler's return is never lost.
func handleElicitationCreate(ctx context.Context, owner notificationRegistrar, params *ElicitationCreateParams) (*ElicitResult, error) {
	support := elicitationSupportFor(owner)
	if support.handler == nil {
		return nil, fmt.Errorf("elicitation handler not configured")
	}

	if params.IsURLMode() {
		support.registerOnce.Do(func() {
			owner.RegisterNotificationHandler(MethodElicitationComplete, func(ctx context.Context, notification *JSONRPCNotification) error {
				return handleElicitationComplete(owner, notification)
			})
		})
		ch := make(chan *ElicitResult, 1)
		support.mu.Lock()
		support.pending[params.ElicitationID] = ch
		support.mu.Unlock()
	}

	result, err := support.handler.HandleElicitation(ctx, params)
	if err != nil && params.IsURLMode() {
		support.mu.Lock()
		delete(support.pending, params.ElicitationID)
		support.mu.Unlock()
	}
	return result, err
}

// HandleElicitationCreate answers an inbound elicitation/create request.
func (c *Client) HandleElicitationCreate(ctx context.Context, params *ElicitationCreateParams) (*ElicitResult, error) {
	return handleElicitationCreate(ctx, c, params)
}

// HandleElicitationCreate answers an inbound elicitation/create request.
func (c *StdioClient) HandleElicitationCreate(ctx context.Context, params *ElicitationCreateParams) (*ElicitResult, error) {
	return handleElicitationCreate(ctx, c, params)
}

// handleElicitationComplete resolves the pending entry for a URL-mode
// elicitation owned by owner. Unknown elicitation IDs are silently
// dropped, per spec.
func handleElicitationComplete(owner interface{}, notification *JSONRPCNotification) error {
	var params ElicitationCompleteParams
	if err := parseJSONRPCParams(notification.Params, &params); err != nil {
		return fmt.Errorf("failed to parse elicitation complete params: %w", err)
	}

	support := elicitationSupportFor(owner)
	support.mu.Lock()
	ch, ok := support.pending[params.ElicitationID]
	if ok {
		delete(support.pending, params.ElicitationID)
	}
	support.mu.Unlock()

	if !ok {
		return nil
	}

	result := params.Result
	ch <- &result
	close(ch)
	return nil
}

// awaitElicitation blocks until the URL-mode elicitation identified by
// elicitationID is resolved by a completion notification or ctx is done.
// Closing the client does not release a waiter.
func awaitElicitation(ctx context.Context, owner interface{}, elicitationID string) (*ElicitResult, error) {
	support := elicitationSupportFor(owner)
	support.mu.Lock()
	ch, ok := support.pending[elicitationID]
	support.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no pending elicitation with id %q", elicitationID)
	}

	select {
	case result, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("elicitation %q channel closed without a result", elicitationID)
		}
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitElicitation blocks until the URL-mode elicitation identified by
// elicitationID is resolved by a completion notification or ctx is done.
// Closing the client does not release a waiter.
func (c *Client) AwaitElicitation(ctx context.Context, elicitationID string) (*ElicitResult, error) {
	return awaitElicitation(ctx, c, elicitationID)
}

// AwaitElicitation blocks until the URL-mode elicitation identified by
// elicitationID is resolved by a completion notification or ctx is done.
// Closing the client does not release a waiter.
func (c *StdioClient) AwaitElicitation(ctx context.Context, elicitationID string) (*ElicitResult, error) {
	return awaitElicitation(ctx, c, elicitationID)
}
