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
	"sync/atomic"

	"github.com/KotDath/mcpp-sub003/internal/errors"
	samplingpkg "github.com/KotDath/mcpp-sub003/sampling"
)

// StdioClient is an MCP client that launches and talks to a server over its
// stdin/stdout, the transport used for local, process-managed MCP servers
// (editor plugins, CLI tools) rather than ones reached over the network.
type StdioClient struct {
	transport       *stdioClientTransport
	clientInfo      Implementation
	protocolVersion string
	initialized     bool
	requestID       atomic.Int64
	capabilities    map[string]interface{}
	state           State

	rootsProvider RootsProvider
	rootsMu       sync.RWMutex
}

// NewStdioClient launches serverParams.Command and wires up a stdio
// transport to it.
func NewStdioClient(serverParams StdioServerParameters, clientInfo Implementation, options ...stdioTransportOption) *StdioClient {
	c := &StdioClient{
		clientInfo:      clientInfo,
		protocolVersion: ProtocolVersion_2025_03_26,
		capabilities:    make(map[string]interface{}),
		state:           StateDisconnected,
		transport:       newStdioClientTransport(serverParams, options...),
	}
	c.transport.client = c
	return c
}

// Initialize starts the child process and performs the MCP handshake.
func (c *StdioClient) Initialize(ctx context.Context, initReq *InitializeRequest) (*InitializeResult, error) {
	if c.initialized {
		return nil, errors.ErrAlreadyInitialized
	}

	if err := c.transport.start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start server process: %w", err)
	}

	requestID := c.requestID.Add(1)
	req := newJSONRPCRequest(requestID, MethodInitialize, map[string]interface{}{
		"protocolVersion": c.protocolVersion,
		"clientInfo":      c.clientInfo,
		"capabilities":    c.capabilities,
	})
	if initReq != nil && !isZeroStruct(initReq.Params) {
		req.Params = initReq.Params
	}

	rawResp, err := c.transport.sendRequest(ctx, req)
	if err != nil {
		c.state = StateDisconnected
		return nil, fmt.Errorf("initialization request failed: %w", err)
	}
	c.state = StateConnected

	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			c.state = StateDisconnected
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		c.state = StateDisconnected
		return nil, fmt.Errorf("initialization error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}

	initResult, err := parseInitializeResultFromJSON(rawResp)
	if err != nil {
		c.state = StateDisconnected
		return nil, fmt.Errorf("failed to parse initialization response: %w", err)
	}

	if err := c.transport.sendNotification(ctx, NewInitializedNotification()); err != nil {
		c.state = StateDisconnected
		return nil, fmt.Errorf("failed to send initialized notification: %w", err)
	}

	c.initialized = true
	c.state = StateInitialized
	return initResult, nil
}

func (c *StdioClient) Close() error {
	err := c.transport.close()
	c.state = StateDisconnected
	c.initialized = false
	return err
}

func (c *StdioClient) GetState() State {
	return c.state
}

func (c *StdioClient) ListTools(ctx context.Context, req *ListToolsRequest) (*ListToolsResult, error) {
	if !c.initialized {
		return nil, errors.ErrNotInitialized
	}
	requestID := c.requestID.Add(1)
	var params interface{}
	if req != nil {
		params = req.Params
	}
	jReq := newJSONRPCRequest(requestID, MethodToolsList, params)

	rawResp, err := c.transport.sendRequest(ctx, jReq)
	if err != nil {
		return nil, fmt.Errorf("list tools request failed: %w", err)
	}
	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, fmt.Errorf("list tools error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}
	return parseListToolsResultFromJSON(rawResp)
}

func (c *StdioClient) CallTool(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
	if !c.initialized {
		return nil, errors.ErrNotInitialized
	}
	requestID := c.requestID.Add(1)
	jReq := newJSONRPCRequest(requestID, MethodToolsCall, req.Params)

	rawResp, err := c.transport.sendRequest(ctx, jReq)
	if err != nil {
		return nil, fmt.Errorf("call tool request failed: %w", err)
	}
	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, fmt.Errorf("tool call error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}
	return parseCallToolResult(rawResp)
}

func (c *StdioClient) ListPrompts(ctx context.Context, req *ListPromptsRequest) (*ListPromptsResult, error) {
	if !c.initialized {
		return nil, errors.ErrNotInitialized
	}
	requestID := c.requestID.Add(1)
	var params interface{}
	if req != nil {
		params = req.Params
	}
	jReq := newJSONRPCRequest(requestID, MethodPromptsList, params)

	rawResp, err := c.transport.sendRequest(ctx, jReq)
	if err != nil {
		return nil, fmt.Errorf("list prompts request failed: %w", err)
	}
	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, fmt.Errorf("list prompts error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}
	return parseListPromptsResultFromJSON(rawResp)
}

func (c *StdioClient) GetPrompt(ctx context.Context, req *GetPromptRequest) (*GetPromptResult, error) {
	if !c.initialized {
		return nil, errors.ErrNotInitialized
	}
	requestID := c.requestID.Add(1)
	jReq := newJSONRPCRequest(requestID, MethodPromptsGet, req.Params)

	rawResp, err := c.transport.sendRequest(ctx, jReq)
	if err != nil {
		return nil, fmt.Errorf("get prompt request failed: %w", err)
	}
	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, fmt.Errorf("get prompt error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}
	return parseGetPromptResultFromJSON(rawResp)
}

func (c *StdioClient) ListResources(ctx context.Context, req *ListResourcesRequest) (*ListResourcesResult, error) {
	if !c.initialized {
		return nil, errors.ErrNotInitialized
	}
	requestID := c.requestID.Add(1)
	var params interface{}
	if req != nil {
		params = req.Params
	}
	jReq := newJSONRPCRequest(requestID, MethodResourcesList, params)

	rawResp, err := c.transport.sendRequest(ctx, jReq)
	if err != nil {
		return nil, fmt.Errorf("list resources request failed: %w", err)
	}
	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, fmt.Errorf("list resources error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}
	return parseListResourcesResultFromJSON(rawResp)
}

func (c *StdioClient) ReadResource(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error) {
	if !c.initialized {
		return nil, errors.ErrNotInitialized
	}
	requestID := c.requestID.Add(1)
	jReq := newJSONRPCRequest(requestID, MethodResourcesRead, req.Params)

	rawResp, err := c.transport.sendRequest(ctx, jReq)
	if err != nil {
		return nil, fmt.Errorf("read resource request failed: %w", err)
	}
	if isErrorResponse(rawResp) {
		errResp, err := parseRawMessageToError(rawResp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, fmt.Errorf("read resource error: %s (code: %d)", errResp.Error.Message, errResp.Error.Code)
	}
	return parseReadResourceResultFromJSON(rawResp)
}

func (c *StdioClient) RegisterNotificationHandler(method string, handler NotificationHandler) {
	c.transport.registerNotificationHandler(method, handler)
}

func (c *StdioClient) UnregisterNotificationHandler(method string) {
	c.transport.unregisterNotificationHandler(method)
}

func (c *StdioClient) SetRootsProvider(provider RootsProvider) {
	c.rootsMu.Lock()
	defer c.rootsMu.Unlock()
	c.rootsProvider = provider
}

func (c *StdioClient) SendRootsListChangedNotification(ctx context.Context) error {
	notification := NewJSONRPCNotificationFromMap(MethodNotificationsRootsListChanged, nil)
	return c.transport.sendNotification(ctx, notification)
}

// GetProcessID returns the PID of the launched server process.
func (c *StdioClient) GetProcessID() int {
	return c.transport.getProcessID()
}

// GetCommandLine returns the command line used to launch the server process.
func (c *StdioClient) GetCommandLine() []string {
	return c.transport.getCommandLine()
}

// IsProcessRunning reports whether the server process is still alive.
func (c *StdioClient) IsProcessRunning() bool {
	return c.transport.isProcessRunning()
}

// RestartProcess closes the current process and transport and starts a
// fresh one using the same server parameters, then re-initializes.
func (c *StdioClient) RestartProcess(ctx context.Context) error {
	serverParams := c.transport.serverParams
	_ = c.transport.close()

	c.transport = newStdioClientTransport(serverParams)
	c.transport.client = c
	c.initialized = false
	c.state = StateDisconnected

	_, err := c.Initialize(ctx, nil)
	return err
}

// GetSessionID returns the session ID assigned during initialization, if any.
func (c *StdioClient) GetSessionID() string {
	return c.transport.getSessionID()
}

// TerminateSession ends the current session without killing the process.
func (c *StdioClient) TerminateSession(ctx context.Context) error {
	return c.transport.terminateSession(ctx)
}

// stdioSamplingMu guards stdioSamplingMap, mirroring ClientSamplingMap's
// package-level bolt-on pattern for the stdio client shape.
var (
	stdioSamplingMu  sync.Mutex
	stdioSamplingMap = make(map[*StdioClient]*ClientSamplingSupport)
)

// WithStdioSamplingHandler installs the handler invoked for inbound
// sampling/createMessage requests on a StdioClient.
func WithStdioSamplingHandler(c *StdioClient, handler SamplingHandler) {
	stdioSamplingMu.Lock()
	defer stdioSamplingMu.Unlock()
	if stdioSamplingMap[c] == nil {
		stdioSamplingMap[c] = &ClientSamplingSupport{}
	}
	stdioSamplingMap[c].SamplingHandler = handler
	stdioSamplingMap[c].SamplingEnabled = true
}

// HandleSamplingRequest answers an inbound sampling/createMessage request.
func (c *StdioClient) HandleSamplingRequest(ctx context.Context, req *samplingpkg.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error) {
	stdioSamplingMu.Lock()
	support := stdioSamplingMap[c]
	stdioSamplingMu.Unlock()

	if support == nil || !support.SamplingEnabled || support.SamplingHandler == nil {
		return nil, fmt.Errorf("sampling not enabled")
	}
	return support.SamplingHandler.HandleSamplingRequest(ctx, req)
}

// CleanupStdioClientSampling drops the sampling bookkeeping for a
// StdioClient, mirroring CleanupClientSampling.
func CleanupStdioClientSampling(c *StdioClient) {
	stdioSamplingMu.Lock()
	defer stdioSamplingMu.Unlock()
	delete(stdioSamplingMap, c)
}
