// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/KotDath/mcpp-sub003/internal/retry"
	"github.com/KotDath/mcpp-sub003/sampling"
)

// HTTPReqHandler abstracts the mechanics of actually delivering an HTTP
// request, letting callers substitute a custom RPC stub (e.g. a trpc-go
// client invoking through service discovery) in place of a raw net/http.Client.
type HTTPReqHandler interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPReqHandlerOption configures a defaultHTTPReqHandler.
type HTTPReqHandlerOption func(*defaultHTTPReqHandler)

// defaultHTTPReqHandler is the net/http-backed HTTPReqHandler used unless a
// caller supplies their own via WithHTTPReqHandler.
type defaultHTTPReqHandler struct {
	serviceName string
	client      *http.Client
}

// WithHTTPReqHandlerClient overrides the underlying *http.Client.
func WithHTTPReqHandlerClient(client *http.Client) HTTPReqHandlerOption {
	return func(h *defaultHTTPReqHandler) {
		h.client = client
	}
}

// NewHTTPReqHandler creates the default HTTP request handler. serviceName is
// carried for custom implementations that route by service identity; the
// default handler ignores it and dials the request's URL directly.
func NewHTTPReqHandler(serviceName string, opts ...HTTPReqHandlerOption) HTTPReqHandler {
	h := &defaultHTTPReqHandler{
		serviceName: serviceName,
		client:      &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *defaultHTTPReqHandler) Do(req *http.Request) (*http.Response, error) {
	return h.client.Do(req)
}

// httpTransport is the interface Client relies on for its transport field,
// satisfied by both streamableHTTPClientTransport and sseClientTransport.
type httpTransport interface {
	sendRequest(ctx context.Context, req *JSONRPCRequest) (*json.RawMessage, error)
	sendNotification(ctx context.Context, notification *JSONRPCNotification) error
	close() error
	getSessionID() string
	terminateSession(ctx context.Context) error
	setRetryConfig(config *retry.Config)
}

// transportOption configures a streamableHTTPClientTransport.
type transportOption func(*streamableHTTPClientTransport)

func withClientTransportLogger(logger Logger) transportOption {
	return func(t *streamableHTTPClientTransport) {
		t.logger = logger
	}
}

func withClientTransportGetSSEEnabled(enabled bool) transportOption {
	return func(t *streamableHTTPClientTransport) {
		t.enableGetSSE = enabled
	}
}

func withClientTransportPath(path string) transportOption {
	return func(t *streamableHTTPClientTransport) {
		t.path = path
	}
}

func withTransportHTTPReqHandler(handler HTTPReqHandler) transportOption {
	return func(t *streamableHTTPClientTransport) {
		t.reqHandler = handler
	}
}

func withTransportHTTPHeaders(headers http.Header) transportOption {
	return func(t *streamableHTTPClientTransport) {
		if t.httpHeaders == nil {
			t.httpHeaders = make(http.Header)
		}
		for k, v := range headers {
			t.httpHeaders[k] = v
		}
	}
}

func withTransportServiceName(serviceName string) transportOption {
	return func(t *streamableHTTPClientTransport) {
		t.serviceName = serviceName
	}
}

func withTransportHTTPReqHandlerOption(option HTTPReqHandlerOption) transportOption {
	return func(t *streamableHTTPClientTransport) {
		t.httpReqHandlerOptions = append(t.httpReqHandlerOptions, option)
	}
}

// streamableHTTPClientTransport implements the streamable-HTTP client side
// of the protocol: every request is a POST to a single endpoint, with an
// optional GET SSE stream kept open for server-initiated traffic, and
// correlation carried by the Mcp-Session-Id header.
type streamableHTTPClientTransport struct {
	serverURL   *url.URL
	path        string
	httpHeaders http.Header
	logger      Logger

	serviceName           string
	httpReqHandlerOptions []HTTPReqHandlerOption
	reqHandler            HTTPReqHandler

	enableGetSSE bool

	sessionID   string
	sessionMu   sync.RWMutex
	requestID   atomic.Int64
	retryConfig *retry.Config

	notificationHandlers map[string]NotificationHandler
	handlersMu           sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	// client references the owning Client so an incoming roots/list request
	// received over the GET SSE stream can be answered via its rootsProvider.
	client *Client
}

// newStreamableHTTPClientTransport creates the client transport. config
// supplies the defaults; options layer on top, matching the precedence
// ClientOption appends them in.
func newStreamableHTTPClientTransport(config *transportConfig, options ...transportOption) *streamableHTTPClientTransport {
	ctx, cancel := context.WithCancel(context.Background())

	t := &streamableHTTPClientTransport{
		serverURL:             config.serverURL,
		path:                  config.path,
		httpHeaders:           config.httpHeaders,
		logger:                config.logger,
		serviceName:           config.serviceName,
		httpReqHandlerOptions: config.httpReqHandlerOptions,
		reqHandler:            config.httpReqHandler,
		enableGetSSE:          config.enableGetSSE,
		notificationHandlers:  make(map[string]NotificationHandler),
		ctx:                   ctx,
		cancel:                cancel,
	}

	for _, option := range options {
		option(t)
	}

	if t.logger == nil {
		t.logger = GetDefaultLogger()
	}
	if t.reqHandler == nil {
		t.reqHandler = NewHTTPReqHandler(t.serviceName, t.httpReqHandlerOptions...)
	}

	return t
}

// endpointURL returns the URL every POST/GET/DELETE is sent to.
func (t *streamableHTTPClientTransport) endpointURL() *url.URL {
	u := *t.serverURL
	if t.path != "" {
		u.Path = t.path
	}
	return &u
}

func (t *streamableHTTPClientTransport) newHTTPRequest(ctx context.Context, method string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.endpointURL().String(), reader)
	if err != nil {
		return nil, err
	}
	for k, v := range t.httpHeaders {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream")

	t.sessionMu.RLock()
	sessionID := t.sessionID
	t.sessionMu.RUnlock()
	if sessionID != "" {
		req.Header.Set(mcpSessionHeader, sessionID)
	}
	return req, nil
}

func (t *streamableHTTPClientTransport) do(req *http.Request) (*http.Response, error) {
	if t.retryConfig == nil {
		return t.reqHandler.Do(req)
	}
	var resp *http.Response
	err := retry.Execute(req.Context(), func() error {
		var doErr error
		resp, doErr = t.reqHandler.Do(req)
		return doErr
	}, t.retryConfig, "streamableHTTPClientTransport.do")
	return resp, err
}

func (t *streamableHTTPClientTransport) captureSessionID(resp *http.Response) {
	if id := resp.Header.Get(mcpSessionHeader); id != "" {
		t.sessionMu.Lock()
		t.sessionID = id
		t.sessionMu.Unlock()
	}
}

func (t *streamableHTTPClientTransport) sendRequest(ctx context.Context, req *JSONRPCRequest) (*json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := t.newHTTPRequest(ctx, http.MethodPost, body)
	if err != nil {
		return nil, err
	}

	resp, err := t.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	t.captureSessionID(resp)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var envelope JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.Error != nil {
		errBytes, _ := json.Marshal(map[string]interface{}{"error": envelope.Error})
		raw := json.RawMessage(errBytes)
		return &raw, nil
	}

	resultBytes, err := json.Marshal(envelope.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	raw := json.RawMessage(resultBytes)
	return &raw, nil
}

func (t *streamableHTTPClientTransport) sendNotification(ctx context.Context, notification *JSONRPCNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	httpReq, err := t.newHTTPRequest(ctx, http.MethodPost, body)
	if err != nil {
		return err
	}

	resp, err := t.do(httpReq)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	t.captureSessionID(resp)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func (t *streamableHTTPClientTransport) getSessionID() string {
	t.sessionMu.RLock()
	defer t.sessionMu.RUnlock()
	return t.sessionID
}

func (t *streamableHTTPClientTransport) terminateSession(ctx context.Context) error {
	sessionID := t.getSessionID()
	if sessionID == "" {
		return nil
	}

	httpReq, err := t.newHTTPRequest(ctx, http.MethodDelete, nil)
	if err != nil {
		return err
	}
	resp, err := t.do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}
	defer resp.Body.Close()

	t.sessionMu.Lock()
	t.sessionID = ""
	t.sessionMu.Unlock()
	return nil
}

func (t *streamableHTTPClientTransport) setRetryConfig(config *retry.Config) {
	t.retryConfig = config
}

func (t *streamableHTTPClientTransport) registerNotificationHandler(method string, handler NotificationHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.notificationHandlers[method] = handler
}

func (t *streamableHTTPClientTransport) unregisterNotificationHandler(method string) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	delete(t.notificationHandlers, method)
}

func (t *streamableHTTPClientTransport) close() error {
	t.cancel()
	return nil
}

// establishGetSSEConnection opens the long-lived GET stream carrying
// server-initiated notifications and requests, and keeps reconnecting until
// the transport is closed. Errors are logged, not returned, since this runs
// detached from the caller that triggered Initialize.
func (t *streamableHTTPClientTransport) establishGetSSEConnection() {
	if !t.enableGetSSE {
		return
	}

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		if err := t.runGetSSEConnection(); err != nil {
			t.logger.Debugf("GET SSE connection ended: %v", err)
		}

		select {
		case <-t.ctx.Done():
			return
		default:
		}
	}
}

func (t *streamableHTTPClientTransport) runGetSSEConnection() error {
	httpReq, err := t.newHTTPRequest(t.ctx, http.MethodGet, nil)
	if err != nil {
		return err
	}

	resp, err := t.reqHandler.Do(httpReq)
	if err != nil {
		return fmt.Errorf("GET SSE request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		// Server doesn't support GET SSE; nothing more to do until the
		// transport closes.
		resp.Body.Close()
		<-t.ctx.Done()
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected GET SSE status: %d", resp.StatusCode)
	}
	t.captureSessionID(resp)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if len(dataLines) > 0 {
				t.handleSSEMessage([]byte(strings.Join(dataLines, "\n")))
				dataLines = nil
			}
		}
	}
	return scanner.Err()
}

// handleSSEMessage classifies and dispatches a single server-pushed message
// delivered over the GET SSE stream.
func (t *streamableHTTPClientTransport) handleSSEMessage(data []byte) {
	var base baseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		t.logger.Errorf("failed to parse SSE message: %v", err)
		return
	}

	switch {
	case base.ID != nil && base.Method != "":
		var req JSONRPCRequest
		if err := json.Unmarshal(data, &req); err != nil {
			t.logger.Errorf("failed to parse server request: %v", err)
			return
		}
		t.handleIncomingRequest(&req)

	case base.ID == nil && base.Method != "":
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

	case base.ID != nil && base.Method == "":
		// A bare response pushed over the GET stream rather than returned
		// directly from the POST that issued the request. This transport
		// always receives its responses inline on the POST, so there is no
		// pending call to correlate this against.
		t.logger.Debugf("ignoring unsolicited response on GET SSE stream: id=%v", base.ID)
	}
}

// handleIncomingRequest answers a server-initiated request delivered over
// the GET SSE stream: roots/list, elicitation/create and
// sampling/createMessage are answered, any other method gets MethodNotFound.
func (t *streamableHTTPClientTransport) handleIncomingRequest(req *JSONRPCRequest) {
	if t.client == nil {
		t.sendErrorResponse(req.ID, ErrCodeInternal, "no client bound to transport")
		return
	}

	switch req.Method {
	case MethodRootsList:
		t.handleRootsListRequest(req)
	case MethodElicitationCreate:
		t.handleElicitationCreateRequest(req)
	case MethodSamplingCreateMessage:
		t.handleSamplingCreateRequest(req)
	default:
		t.sendErrorResponse(req.ID, ErrCodeMethodNotFound, "method not supported by client")
	}
}

func (t *streamableHTTPClientTransport) handleRootsListRequest(req *JSONRPCRequest) {
	t.client.rootsMu.RLock()
	provider := t.client.rootsProvider
	t.client.rootsMu.RUnlock()

	if provider == nil {
		t.sendErrorResponse(req.ID, ErrCodeInternal, "no roots provider configured")
		return
	}

	roots := provider.GetRoots()
	result := ListRootsResult{Roots: roots}
	response := &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	t.postResponse(response)
}

func (t *streamableHTTPClientTransport) handleElicitationCreateRequest(req *JSONRPCRequest) {
	var params ElicitationCreateParams
	if err := parseJSONRPCParams(req.Params, &params); err != nil {
		t.sendErrorResponse(req.ID, ErrCodeInvalidParams, "invalid elicitation/create params")
		return
	}

	result, err := t.client.HandleElicitationCreate(t.ctx, &params)
	if err != nil {
		t.sendErrorResponse(req.ID, ErrCodeInternal, err.Error())
		return
	}

	response := &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	t.postResponse(response)
}

func (t *streamableHTTPClientTransport) handleSamplingCreateRequest(req *JSONRPCRequest) {
	var params sampling.SamplingCreateMessageParams
	if err := parseJSONRPCParams(req.Params, &params); err != nil {
		t.sendErrorResponse(req.ID, ErrCodeInvalidParams, "invalid sampling/createMessage params")
		return
	}

	samplingReq := &sampling.SamplingCreateMessageRequest{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Method:  MethodSamplingCreateMessage,
		Params:  params,
	}

	result, err := t.client.HandleSamplingRequest(t.ctx, samplingReq)
	if err != nil {
		t.sendErrorResponse(req.ID, ErrCodeInternal, err.Error())
		return
	}

	response := &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	t.postResponse(response)
}

func (t *streamableHTTPClientTransport) sendErrorResponse(id interface{}, code int, message string) {
	t.postResponse(newJSONRPCErrorResponse(id, code, message, nil))
}

func (t *streamableHTTPClientTransport) postResponse(response *JSONRPCResponse) {
	body, err := json.Marshal(response)
	if err != nil {
		t.logger.Errorf("failed to marshal response: %v", err)
		return
	}
	httpReq, err := t.newHTTPRequest(t.ctx, http.MethodPost, body)
	if err != nil {
		t.logger.Errorf("failed to build response request: %v", err)
		return
	}
	resp, err := t.reqHandler.Do(httpReq)
	if err != nil {
		t.logger.Errorf("failed to post response: %v", err)
		return
	}
	resp.Body.Close()
}
