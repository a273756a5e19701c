// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/KotDath/mcpp-sub003/internal/retry"
)

// sseClientTransport implements the legacy, pre-streamable-HTTP MCP
// transport: a GET connection receives an "endpoint" event naming the URL to
// POST messages to, POSTs are answered with a bare 202 Accepted, and actual
// JSON-RPC responses and server notifications arrive asynchronously as
// "message" events on the SSE stream.
type sseClientTransport struct {
	serverURL   *url.URL
	path        string
	httpHeaders http.Header
	logger      Logger

	serviceName           string
	httpReqHandlerOptions []HTTPReqHandlerOption
	reqHandler            HTTPReqHandler

	messageURL   *url.URL
	messageURLMu sync.RWMutex
	connected    chan struct{}
	connectOnce  sync.Once

	sessionID string
	sessionMu sync.RWMutex

	requestID       atomic.Int64
	pendingRequests map[int64]chan *json.RawMessage
	pendingMu       sync.Mutex

	notificationHandlers map[string]NotificationHandler
	handlersMu           sync.RWMutex

	retryConfig *retry.Config

	ctx    context.Context
	cancel context.CancelFunc

	client *Client
}

// newSSEClientTransport creates the legacy SSE client transport and starts
// the GET stream in the background.
func newSSEClientTransport(config *transportConfig, options ...transportOption) *sseClientTransport {
	ctx, cancel := context.WithCancel(context.Background())

	t := &sseClientTransport{
		serverURL:             config.serverURL,
		path:                  config.path,
		httpHeaders:           config.httpHeaders,
		logger:                config.logger,
		serviceName:           config.serviceName,
		httpReqHandlerOptions: config.httpReqHandlerOptions,
		reqHandler:            config.httpReqHandler,
		connected:             make(chan struct{}),
		pendingRequests:       make(map[int64]chan *json.RawMessage),
		notificationHandlers:  make(map[string]NotificationHandler),
		ctx:                   ctx,
		cancel:                cancel,
	}

	// transportOption targets streamableHTTPClientTransport directly, so the
	// option funcs are replayed against a throwaway struct of that type and
	// the handful of fields the legacy transport shares are copied by hand.
	probe := &streamableHTTPClientTransport{}
	for _, option := range options {
		option(probe)
	}
	if probe.logger != nil {
		t.logger = probe.logger
	}
	if probe.path != "" {
		t.path = probe.path
	}
	if probe.reqHandler != nil {
		t.reqHandler = probe.reqHandler
	}
	if probe.httpHeaders != nil {
		if t.httpHeaders == nil {
			t.httpHeaders = make(http.Header)
		}
		for k, v := range probe.httpHeaders {
			t.httpHeaders[k] = v
		}
	}
	if probe.serviceName != "" {
		t.serviceName = probe.serviceName
	}
	t.httpReqHandlerOptions = append(t.httpReqHandlerOptions, probe.httpReqHandlerOptions...)

	if t.logger == nil {
		t.logger = GetDefaultLogger()
	}
	if t.reqHandler == nil {
		t.reqHandler = NewHTTPReqHandler(t.serviceName, t.httpReqHandlerOptions...)
	}

	go t.readLoop()

	return t
}

func (t *sseClientTransport) sseEndpointURL() *url.URL {
	u := *t.serverURL
	if t.path != "" {
		u.Path = t.path
	}
	return &u
}

// readLoop holds the GET connection open for the transport's lifetime,
// dispatching "endpoint" and "message" events as they arrive.
func (t *sseClientTransport) readLoop() {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, t.sseEndpointURL().String(), nil)
	if err != nil {
		t.logger.Errorf("failed to build SSE request: %v", err)
		return
	}
	for k, v := range t.httpHeaders {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.reqHandler.Do(req)
	if err != nil {
		t.logger.Errorf("SSE connection failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		t.logger.Errorf("unexpected SSE status: %d", resp.StatusCode)
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if len(dataLines) > 0 {
				t.handleEvent(eventType, strings.Join(dataLines, "\n"))
				eventType, dataLines = "", nil
			}
		}
	}
}

func (t *sseClientTransport) handleEvent(eventType, data string) {
	switch eventType {
	case "endpoint":
		endpoint, err := t.serverURL.Parse(data)
		if err != nil {
			t.logger.Errorf("failed to parse message endpoint %q: %v", data, err)
			return
		}
		t.messageURLMu.Lock()
		t.messageURL = endpoint
		t.messageURLMu.Unlock()

		if values := endpoint.Query(); values.Get("sessionId") != "" {
			t.sessionMu.Lock()
			t.sessionID = values.Get("sessionId")
			t.sessionMu.Unlock()
		}

		t.connectOnce.Do(func() { close(t.connected) })

	case "message":
		t.handleMessage([]byte(data))

	default:
		t.logger.Debugf("ignoring unrecognized SSE event %q", eventType)
	}
}

func (t *sseClientTransport) handleMessage(data []byte) {
	var base baseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		t.logger.Errorf("failed to parse SSE message: %v", err)
		return
	}

	if base.ID == nil {
		var notification JSONRPCNotification
		if err := json.Unmarshal(data, &notification); err != nil {
			t.logger.Errorf("failed to parse notification: %v", err)
			return
		}
		t.handlersMu.RLock()
		handler, ok := t.notificationHandlers[notification.Method]
		t.handlersMu.RUnlock()
		if ok {
			if err := handler(t.ctx, &notification); err != nil {
				t.logger.Errorf("notification handler for %s failed: %v", notification.Method, err)
			}
		}
		return
	}

	idFloat, ok := base.ID.(float64)
	if !ok {
		return
	}
	reqID := int64(idFloat)

	t.pendingMu.Lock()
	ch, exists := t.pendingRequests[reqID]
	if exists {
		delete(t.pendingRequests, reqID)
	}
	t.pendingMu.Unlock()
	if !exists {
		return
	}

	var envelope JSONRPCResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		close(ch)
		return
	}
	if envelope.Error != nil {
		errBytes, _ := json.Marshal(map[string]interface{}{"error": envelope.Error})
		raw := json.RawMessage(errBytes)
		ch <- &raw
		return
	}
	resultBytes, _ := json.Marshal(envelope.Result)
	raw := json.RawMessage(resultBytes)
	ch <- &raw
}

// waitConnected blocks until the endpoint event has been received, or ctx
// is done, whichever comes first.
func (t *sseClientTransport) waitConnected(ctx context.Context) error {
	select {
	case <-t.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return fmt.Errorf("sse transport closed")
	}
}

func (t *sseClientTransport) postMessage(ctx context.Context, body []byte) error {
	if err := t.waitConnected(ctx); err != nil {
		return err
	}

	t.messageURLMu.RLock()
	target := *t.messageURL
	t.messageURLMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	for k, v := range t.httpHeaders {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	do := t.reqHandler.Do
	if t.retryConfig != nil {
		var resp *http.Response
		err := retry.Execute(ctx, func() error {
			var doErr error
			resp, doErr = do(req)
			return doErr
		}, t.retryConfig, "sseClientTransport.postMessage")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return nil
	}

	resp, err := do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func (t *sseClientTransport) sendRequest(ctx context.Context, req *JSONRPCRequest) (*json.RawMessage, error) {
	idFloat, ok := req.ID.(int64)
	if !ok {
		if f, ok := req.ID.(float64); ok {
			idFloat = int64(f)
		}
	}

	ch := make(chan *json.RawMessage, 1)
	t.pendingMu.Lock()
	t.pendingRequests[idFloat] = ch
	t.pendingMu.Unlock()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := t.postMessage(ctx, body); err != nil {
		t.pendingMu.Lock()
		delete(t.pendingRequests, idFloat)
		t.pendingMu.Unlock()
		return nil, fmt.Errorf("failed to post message: %w", err)
	}

	select {
	case raw := <-ch:
		return raw, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pendingRequests, idFloat)
		t.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, fmt.Errorf("sse transport closed")
	}
}

func (t *sseClientTransport) sendNotification(ctx context.Context, notification *JSONRPCNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return t.postMessage(ctx, body)
}

func (t *sseClientTransport) close() error {
	t.cancel()
	return nil
}

func (t *sseClientTransport) getSessionID() string {
	t.sessionMu.RLock()
	defer t.sessionMu.RUnlock()
	return t.sessionID
}

func (t *sseClientTransport) terminateSession(ctx context.Context) error {
	t.cancel()
	return nil
}

func (t *sseClientTransport) setRetryConfig(config *retry.Config) {
	t.retryConfig = config
}

func (t *sseClientTransport) registerNotificationHandler(method string, handler NotificationHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.notificationHandlers[method] = handler
}

func (t *sseClientTransport) unregisterNotificationHandler(method string) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	delete(t.notificationHandlers, method)
}
