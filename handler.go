// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
)

// parseJSONRPCParams parses JSON-RPC parameters into a target structure
func parseJSONRPCParams(params interface{}, target interface{}) error {
	if params == nil {
		return nil
	}

	// Convert params to JSON and then unmarshal into target
	paramBytes, err := json.Marshal(params)
	if err != nil {
		return err
	}

	return json.Unmarshal(paramBytes, target)
}

const (
	// defaultServerName is the default name for the server
	defaultServerName = "Go-MCP-Server"
	// defaultServerVersion is the default version for the server
	defaultServerVersion = "0.1.0"
)

// handler interface defines the MCP protocol handler
type handler interface {
	// handleRequest processes requests
	handleRequest(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error)

	// handleNotification processes notifications
	handleNotification(ctx context.Context, notification *JSONRPCNotification, sess *Session) error
}

// mcpHandler implements the default MCP protocol handler
type mcpHandler struct {
	// Tool manager
	toolManager *toolManager

	// Lifecycle manager
	lifecycleManager *lifecycleManager

	// Resource manager
	resourceManager *resourceManager

	// Prompt manager
	promptManager *promptManager

	// Task manager
	taskManager *taskManager

	// Middleware chain for server request processing, applied onion-style
	// around the dispatch table entry for every method.
	middlewares []func(HandlerFunc) HandlerFunc

	// server is the owning Server, reachable by handlers that need to
	// dispatch server-initiated notifications (e.g. task progress) outside
	// of the current request/response cycle.
	server *Server
}

// HandlerFunc is the shape every request middleware wraps: the core
// per-method dispatch, stripped of the sess parameter since middleware
// reaches the session through ClientSessionFromContext instead.
type HandlerFunc func(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error)

// newMCPHandler creates an MCP protocol handler
func newMCPHandler(options ...func(*mcpHandler)) *mcpHandler {
	h := &mcpHandler{}

	// Apply options
	for _, option := range options {
		option(h)
	}

	// Create default managers if not set
	if h.toolManager == nil {
		h.toolManager = newToolManager()
	}

	// Create default resource and prompt managers if not set
	if h.resourceManager == nil {
		h.resourceManager = newResourceManager()
	}

	if h.promptManager == nil {
		h.promptManager = newPromptManager()
	}

	if h.taskManager == nil {
		h.taskManager = newTaskManager()
	}

	if h.lifecycleManager == nil {
		h.lifecycleManager = newLifecycleManager(Implementation{
			Name:    defaultServerName,
			Version: defaultServerVersion,
		})
	}

	// Pass managers to lifecycle manager
	h.lifecycleManager.withToolManager(h.toolManager)
	h.lifecycleManager.withResourceManager(h.resourceManager)
	h.lifecycleManager.withPromptManager(h.promptManager)

	return h
}

// withServer sets the owning server reference for notification handling.
func withServer(s *Server) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.server = s
	}
}

// withMiddlewares sets the middleware chain for the handler
func withMiddlewares(middlewares []func(HandlerFunc) HandlerFunc) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.middlewares = append(h.middlewares, middlewares...)
	}
}

// use registers a single middleware, executed around every dispatched
// request in the order registered (the first added wraps outermost).
func (h *mcpHandler) use(mw func(HandlerFunc) HandlerFunc) {
	h.middlewares = append(h.middlewares, mw)
}

// wrapWithMiddlewares builds the onion of registered middlewares around core.
func (h *mcpHandler) wrapWithMiddlewares(core HandlerFunc) HandlerFunc {
	wrapped := core
	for i := len(h.middlewares) - 1; i >= 0; i-- {
		wrapped = h.middlewares[i](wrapped)
	}
	return wrapped
}

// withToolManager sets the tool manager
func withToolManager(manager *toolManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.toolManager = manager
	}
}

// withLifecycleManager sets the lifecycle manager
func withLifecycleManager(manager *lifecycleManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.lifecycleManager = manager
	}
}

// withResourceManager sets the resource manager
func withResourceManager(manager *resourceManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.resourceManager = manager
	}
}

// withPromptManager sets the prompt manager
func withPromptManager(manager *promptManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.promptManager = manager
	}
}

// withTaskManager sets the task manager
func withTaskManager(manager *taskManager) func(*mcpHandler) {
	return func(h *mcpHandler) {
		h.taskManager = manager
	}
}

// requestHandlerFunc is the signature every entry in the dispatch table has.
type requestHandlerFunc func(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error)

// requestDispatchTable maps MCP method names to their handler.
func (h *mcpHandler) requestDispatchTable() map[string]requestHandlerFunc {
	return map[string]requestHandlerFunc{
		MethodInitialize:             h.handleInitialize,
		MethodPing:                   h.handlePing,
		MethodToolsList:              h.handleToolsList,
		MethodToolsCall:              h.handleToolsCall,
		MethodResourcesList:          h.handleResourcesList,
		MethodResourcesRead:          h.handleResourcesRead,
		MethodResourcesTemplatesList: h.handleResourcesTemplatesList,
		MethodResourcesSubscribe:     h.handleResourcesSubscribe,
		MethodResourcesUnsubscribe:   h.handleResourcesUnsubscribe,
		MethodPromptsList:            h.handlePromptsList,
		MethodPromptsGet:             h.handlePromptsGet,
		MethodCompletionComplete:     h.handleCompletionComplete,
		MethodTasksCreate:            h.handleTasksCreate,
		MethodTasksGet:               h.handleTasksGet,
		MethodTasksCancel:            h.handleTasksCancel,
		MethodTasksList:              h.handleTasksList,
	}
}

// handleRequest looks up the request's method in the dispatch table and
// invokes it, tracking the request against sess so it can be cancelled.
func (h *mcpHandler) handleRequest(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	dispatchTable := h.requestDispatchTable()
	handlerFunc, ok := dispatchTable[req.Method]
	if !ok {
		return newJSONRPCErrorResponse(req.ID, ErrCodeMethodNotFound, "method not found", nil), nil
	}

	core := func(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
		return handlerFunc(ctx, req, sess)
	}
	wrapped := h.wrapWithMiddlewares(core)

	// initialize is exempt from cancellation tracking and timeouts: per the
	// MCP lifecycle a client must not be able to cancel its own handshake.
	// A nil sess (stateless/no-session transports) is likewise exempt since
	// there is no per-connection tracker to register the request against.
	if req.Method == MethodInitialize || sess == nil {
		return wrapped(ctx, req)
	}

	reqCtx, done := sess.WithRequest(ctx, req.ID)
	defer done()

	result, err := wrapped(reqCtx, req)
	if err != nil {
		if reqCtx.Err() != nil {
			return newJSONRPCErrorResponse(req.ID, ErrCodeInternal, "request cancelled", nil), nil
		}
		return nil, err
	}
	return result, nil
}

// Private methods for each case branch
func (h *mcpHandler) handleInitialize(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	sess.SetData(initializeRequestIDKey, req.ID)
	return h.lifecycleManager.handleInitialize(ctx, req, sess)
}

func (h *mcpHandler) handlePing(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return map[string]interface{}{}, nil
}

func (h *mcpHandler) handleToolsList(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.toolManager.handleListTools(ctx, req, sess)
}

func (h *mcpHandler) handleToolsCall(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.toolManager.handleCallTool(ctx, req, sess)
}

func (h *mcpHandler) handleResourcesList(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.resourceManager.handleListResources(ctx, req)
}

func (h *mcpHandler) handleResourcesRead(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.resourceManager.handleReadResource(ctx, req)
}

func (h *mcpHandler) handleResourcesTemplatesList(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.resourceManager.handleListTemplates(ctx, req)
}

func (h *mcpHandler) handleResourcesSubscribe(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.resourceManager.handleSubscribe(ctx, req)
}

func (h *mcpHandler) handleResourcesUnsubscribe(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.resourceManager.handleUnsubscribe(ctx, req)
}

func (h *mcpHandler) handlePromptsList(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.promptManager.handleListPrompts(ctx, req)
}

func (h *mcpHandler) handlePromptsGet(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.promptManager.handleGetPrompt(ctx, req)
}

func (h *mcpHandler) handleCompletionComplete(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.promptManager.handleCompletionComplete(ctx, req)
}

func (h *mcpHandler) handleTasksCreate(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.taskManager.handleCreateTask(ctx, req)
}

func (h *mcpHandler) handleTasksGet(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.taskManager.handleGetTask(ctx, req)
}

func (h *mcpHandler) handleTasksCancel(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.taskManager.handleCancelTask(ctx, req)
}

func (h *mcpHandler) handleTasksList(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	return h.taskManager.handleListTasks(ctx, req)
}

// handleNotification implements the handler interface's handleNotification method
func (h *mcpHandler) handleNotification(ctx context.Context, notification *JSONRPCNotification, sess *Session) error {
	switch notification.Method {
	case MethodNotificationsInitialized:
		return h.lifecycleManager.handleInitialized(ctx, notification, sess)
	case MethodCancelRequest:
		return h.handleCancelNotification(ctx, notification, sess)
	default:
		// Ignore unknown notifications
		return nil
	}
}

// handleCancelNotification implements notifications/cancelled: the initialize
// request is never cancellable, everything else is forwarded to the session's
// cancellation tracker (itself idempotent against unknown/completed IDs).
func (h *mcpHandler) handleCancelNotification(ctx context.Context, notification *JSONRPCNotification, sess *Session) error {
	requestID := notification.Params.AdditionalFields["requestId"]
	if requestID == nil {
		return nil
	}

	if initID, ok := sess.GetData(initializeRequestIDKey); ok && idsEqual(initID, requestID) {
		return nil
	}

	sess.CancelRequest(requestID)
	return nil
}

// idsEqual compares two JSON-RPC IDs that may have crossed a JSON boundary
// (e.g. a string ID stays a string, but a numeric one may arrive as float64).
func idsEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// onSessionTerminated implements the sessionEventNotifier interface's OnSessionTerminated method
func (h *mcpHandler) onSessionTerminated(sessionID string) {
	// Notify lifecycle manager that session has terminated
	h.lifecycleManager.onSessionTerminated(sessionID)
}
