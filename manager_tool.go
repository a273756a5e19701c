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

	"github.com/KotDath/mcpp-sub003/internal/errors"
)

// serverProvider lets a manager reach back into the owning transport server
// to enrich a handler's context (e.g. so a tool handler can call back into
// Server.SendNotification). Implemented by both *Server and *StdioServer.
type serverProvider interface {
	withContext(ctx context.Context) context.Context
}

// MethodNameModifier rewrites a registered tool's name for external
// exposure, e.g. to namespace tools when multiple servers are mounted
// behind one router. It receives the tool's registered name and returns
// the name clients should see in tools/list and address in tools/call.
type MethodNameModifier func(name string) string

// toolManager manages the set of tools a server exposes.
//
// As with resources and prompts, tool functionality needs no explicit enable
// flag: registering the first tool is what makes tools/list and tools/call
// meaningful, and an empty registry simply answers tools/list with no tools.
type toolManager struct {
	mu sync.RWMutex

	tools      map[string]*registeredTool
	toolsOrder []string

	toolListFilter     ToolListFilter
	methodNameModifier MethodNameModifier
	serverProvider     serverProvider

	// notifyListChanged, when set, is invoked after a registration change.
	// A nil callback means no transport is wired to deliver the notification,
	// which is also what keeps ToolsCapability.ListChanged false in the
	// capabilities advertised at initialize: list-changed support is only
	// ever claimed when it can actually be acted on.
	notifyListChanged func()
}

// newToolManager creates an empty tool registry.
func newToolManager() *toolManager {
	return &toolManager{
		tools: make(map[string]*registeredTool),
	}
}

// withToolListFilter sets the tool list filter.
func (m *toolManager) withToolListFilter(filter ToolListFilter) *toolManager {
	m.toolListFilter = filter
	return m
}

// withMethodNameModifier sets the tool name modifier applied to names
// exposed via tools/list and resolved on tools/call.
func (m *toolManager) withMethodNameModifier(modifier MethodNameModifier) *toolManager {
	m.methodNameModifier = modifier
	return m
}

// withServerProvider wires the owning server so tool handlers can reach it
// through the context passed to invoke.
func (m *toolManager) withServerProvider(sp serverProvider) *toolManager {
	m.serverProvider = sp
	return m
}

// withListChangedNotifier installs the callback fired on registry changes.
func (m *toolManager) withListChangedNotifier(fn func()) *toolManager {
	m.notifyListChanged = fn
	return m
}

// registerTool registers (or replaces) a tool under its name.
func (m *toolManager) registerTool(tool *Tool, handler toolHandler) {
	if tool == nil || tool.Name == "" {
		return
	}

	m.mu.Lock()
	if _, exists := m.tools[tool.Name]; !exists {
		m.toolsOrder = append(m.toolsOrder, tool.Name)
	}
	m.tools[tool.Name] = &registeredTool{Tool: tool, Handler: handler}
	m.mu.Unlock()

	m.maybeNotifyListChanged()
}

// unregisterTool removes a tool by name. A no-op if the tool isn't registered.
func (m *toolManager) unregisterTool(name string) {
	m.mu.Lock()
	_, existed := m.tools[name]
	if existed {
		delete(m.tools, name)
		for i, n := range m.toolsOrder {
			if n == name {
				m.toolsOrder = append(m.toolsOrder[:i], m.toolsOrder[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if existed {
		m.maybeNotifyListChanged()
	}
}

// hasTool reports whether a tool is currently registered under name.
func (m *toolManager) hasTool(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tools[name]
	return ok
}

// getTool looks up a single registered tool by name.
func (m *toolManager) getTool(name string) (*Tool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.tools[name]
	if !ok {
		return nil, false
	}
	return rt.Tool, true
}

// unregisterTools removes multiple tools by name and returns how many
// were actually found and removed.
func (m *toolManager) unregisterTools(names ...string) int {
	count := 0
	for _, name := range names {
		m.mu.Lock()
		_, existed := m.tools[name]
		if existed {
			delete(m.tools, name)
			for i, n := range m.toolsOrder {
				if n == name {
					m.toolsOrder = append(m.toolsOrder[:i], m.toolsOrder[i+1:]...)
					break
				}
			}
		}
		m.mu.Unlock()
		if existed {
			count++
			m.maybeNotifyListChanged()
		}
	}
	return count
}

// getTools returns every registered tool in registration order.
func (m *toolManager) getTools() []*Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tools := make([]*Tool, 0, len(m.tools))
	for _, name := range m.toolsOrder {
		if rt, ok := m.tools[name]; ok {
			tools = append(tools, rt.Tool)
		}
	}
	return tools
}

func (m *toolManager) maybeNotifyListChanged() {
	if m.notifyListChanged != nil {
		m.notifyListChanged()
	}
}

// handleListTools handles a tools/list request, applying the configured
// filter (if any) before paginating.
func (m *toolManager) handleListTools(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	tools := m.getTools()
	if m.toolListFilter != nil {
		tools = m.toolListFilter(ctx, tools)
	}

	page, next := paginate(tools, cursorFromParams(req.Params), defaultPageSize)
	resultTools := make([]Tool, len(page))
	for i, t := range page {
		if t != nil {
			resultTools[i] = *t
			if m.methodNameModifier != nil {
				resultTools[i].Name = m.methodNameModifier(t.Name)
			}
		}
	}

	return ListToolsResult{
		PaginatedResult: PaginatedResult{NextCursor: next},
		Tools:           resultTools,
	}, nil
}

// handleCallTool handles a tools/call request. A missing tool, a schema
// validation failure, or a handler error all surface as an MCP-level failure
// (CallToolResult.IsError = true) rather than a JSON-RPC protocol error: the
// request itself was valid, the tool invocation just didn't succeed.
func (m *toolManager) handleCallTool(ctx context.Context, req *JSONRPCRequest, sess *Session) (JSONRPCMessage, error) {
	paramsMap, ok := req.Params.(map[string]interface{})
	if !ok {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, errors.ErrInvalidParams.Error(), nil), nil
	}

	name, ok := paramsMap["name"].(string)
	if !ok || name == "" {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, errors.ErrMissingParams.Error(), nil), nil
	}

	m.mu.RLock()
	rt, exists := m.tools[name]
	if !exists && m.methodNameModifier != nil {
		for toolName, candidate := range m.tools {
			if m.methodNameModifier(toolName) == name {
				rt, exists = candidate, true
				break
			}
		}
	}
	m.mu.RUnlock()
	if !exists {
		return NewErrorResult(fmt.Sprintf("%v: %s", errors.ErrToolNotFound, name)), nil
	}

	var arguments map[string]interface{}
	if args, ok := paramsMap["arguments"]; ok && args != nil {
		arguments, _ = args.(map[string]interface{})
	}

	if rt.Tool.InputSchema != nil {
		if err := rt.Tool.InputSchema.VisitJSON(arguments); err != nil {
			return NewErrorResult(fmt.Sprintf("%v: %v", errors.ErrSchemaValidation, err)), nil
		}
	}

	callReq := &CallToolRequest{
		Request: Request{Method: MethodToolsCall},
		Params:  CallToolParams{Name: name, Arguments: arguments},
	}

	result, err := m.invoke(ctx, rt.Handler, callReq)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}
	if result == nil {
		result = NewTextResult("")
	}
	return result, nil
}

// invoke calls a tool handler, recovering from panics so a misbehaving
// handler degrades into an isError result instead of taking the process down.
func (m *toolManager) invoke(ctx context.Context, handler toolHandler, req *CallToolRequest) (result *CallToolResult, err error) {
	if m.serverProvider != nil {
		ctx = m.serverProvider.withContext(ctx)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	return handler(ctx, req)
}
