// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"encoding/json"
	"regexp"
)

// JSONRPCVersion is the only JSON-RPC version this package understands.
const JSONRPCVersion = "2.0"

// Protocol versions negotiated during initialize. Negotiation is exact-match:
// the server must echo back one of the versions it actually supports.
const (
	ProtocolVersion_2024_11_05 = "2024-11-05"
	ProtocolVersion_2025_03_26 = "2025-03-26"
)

var supportedProtocolVersions = map[string]bool{
	ProtocolVersion_2024_11_05: true,
	ProtocolVersion_2025_03_26: true,
}

// IsProtocolVersionSupported reports whether the given protocol version string
// is one this package can negotiate.
func IsProtocolVersionSupported(version string) bool {
	if version == "" {
		return false
	}
	return supportedProtocolVersions[version]
}

// MCP method names used for request/notification dispatch.
const (
	MethodInitialize             = "initialize"
	MethodPing                   = "ping"
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodResourcesList          = "resources/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodCompletionComplete     = "completion/complete"
	MethodRootsList              = "roots/list"
	MethodSamplingCreateMessage  = "sampling/createMessage"
	MethodElicitationCreate      = "elicitation/create"
	MethodTasksCreate            = "tasks/create"
	MethodTasksGet               = "tasks/get"
	MethodTasksCancel            = "tasks/cancel"
	MethodTasksList              = "tasks/list"

	MethodNotificationsInitialized  = "notifications/initialized"
	MethodCancelRequest             = "notifications/cancelled"
	MethodProgress                  = "notifications/progress"
	MethodToolListChanged           = "notifications/tools/list_changed"
	MethodResourceListChanged       = "notifications/resources/list_changed"
	MethodPromptListChanged         = "notifications/prompts/list_changed"
	MethodElicitationComplete       = "notifications/elicitation/complete"
	MethodResourceUpdated           = "notifications/resources/updated"

	// MethodTransportGap is the sentinel notification enqueued in place of a
	// dropped event when a session's SSE backpressure bound is exceeded. A
	// client that sees it has missed events and should recover by
	// re-initializing rather than trusting the retained event history.
	MethodTransportGap = "notifications/transport/gap"
)

// JSON-RPC error codes, per the JSON-RPC 2.0 specification.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// JSONRPCMessage is whatever a request handler returns: a concrete MCP result
// value to be wrapped as a successful response, or a pre-built *JSONRPCResponse
// when an error must be returned verbatim. The transport layer is responsible
// for wrapping bare results into a JSONRPCResponse before writing them.
type JSONRPCMessage interface{}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Request
	Params interface{} `json:"params,omitempty"`
}

// JSONRPCNotification represents a JSON-RPC 2.0 notification (no ID, no response expected).
type JSONRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Notification
}

// JSONRPCError represents the "error" member of a JSON-RPC 2.0 response.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return e.Message
}

// JSONRPCResponse represents a JSON-RPC 2.0 response, successful or errored.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// Implementation describes the name and version of an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RootsCapability describes client support for the roots/list method.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapability describes client support for sampling/createMessage.
type SamplingCapability struct{}

// ElicitationCapability describes client support for elicitation/create.
type ElicitationCapability struct{}

// ClientCapabilities describes what an MCP client supports.
type ClientCapabilities struct {
	Experimental map[string]interface{} `json:"experimental,omitempty"`
	Roots        *RootsCapability       `json:"roots,omitempty"`
	Sampling     *SamplingCapability     `json:"sampling,omitempty"`
	Elicitation  *ElicitationCapability  `json:"elicitation,omitempty"`
}

// LoggingCapability describes server support for logging notifications.
type LoggingCapability struct{}

// PromptsCapability describes server support for the prompts surface.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability describes server support for the resources surface.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability describes server support for the tools surface.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities describes what an MCP server supports.
type ServerCapabilities struct {
	Experimental map[string]interface{} `json:"experimental,omitempty"`
	Logging      *LoggingCapability      `json:"logging,omitempty"`
	Prompts      *PromptsCapability      `json:"prompts,omitempty"`
	Resources    *ResourcesCapability    `json:"resources,omitempty"`
	Tools        *ToolsCapability        `json:"tools,omitempty"`
}

// InitializeResult is the server's response to an initialize request.
type InitializeResult struct {
	Result
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// NewInitializeRequest builds the client's initialize request.
func NewInitializeRequest(protocolVersion string, clientInfo Implementation, capabilities ClientCapabilities) *JSONRPCRequest {
	return &JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      1,
		Request: Request{Method: MethodInitialize},
		Params: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"clientInfo":      clientInfo,
			"capabilities":    capabilities,
		},
	}
}

// NewInitializeResponse builds the server's response to an initialize request.
func NewInitializeResponse(reqID interface{}, protocolVersion string, serverInfo Implementation, capabilities ServerCapabilities, instructions string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      reqID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      serverInfo,
			Capabilities:    capabilities,
			Instructions:    instructions,
		},
	}
}

// NewInitializedNotification builds the notifications/initialized notification
// the client sends once it has processed the initialize response.
func NewInitializedNotification() *JSONRPCNotification {
	return &JSONRPCNotification{
		JSONRPC: JSONRPCVersion,
		Notification: Notification{
			Method: MethodNotificationsInitialized,
		},
	}
}

// newJSONRPCErrorResponse builds an error response for the given request ID.
func newJSONRPCErrorResponse(id interface{}, code int, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	}
}

// newJSONRPCNotification wraps a Notification as a JSON-RPC notification envelope.
func newJSONRPCNotification(n Notification) *JSONRPCNotification {
	return &JSONRPCNotification{JSONRPC: JSONRPCVersion, Notification: n}
}

// ParseErrorCode enumerates the reasons decodeMessage can fail to classify
// a raw JSON payload as a valid JSON-RPC request, notification, or response.
type ParseErrorCode int

const (
	ParseErrorMissingJsonrpc ParseErrorCode = iota
	ParseErrorInvalidJsonrpcVersion
	ParseErrorMissingId
	ParseErrorInvalidIdType
	ParseErrorMissingMethod
	ParseErrorInvalidMethodType
	ParseErrorInvalidParamsType
	ParseErrorMalformedJson
)

func (c ParseErrorCode) String() string {
	switch c {
	case ParseErrorMissingJsonrpc:
		return "MissingJsonrpc"
	case ParseErrorInvalidJsonrpcVersion:
		return "InvalidJsonrpcVersion"
	case ParseErrorMissingId:
		return "MissingId"
	case ParseErrorInvalidIdType:
		return "InvalidIdType"
	case ParseErrorMissingMethod:
		return "MissingMethod"
	case ParseErrorInvalidMethodType:
		return "InvalidMethodType"
	case ParseErrorInvalidParamsType:
		return "InvalidParamsType"
	case ParseErrorMalformedJson:
		return "MalformedJson"
	default:
		return "Unknown"
	}
}

// ParseError describes why a raw payload could not be decoded into a
// JSON-RPC message. RecoveredID carries a best-effort ID extraction so a
// caller can still address an error response back to the peer, even when
// the message as a whole could not be parsed.
type ParseError struct {
	Code        ParseErrorCode
	Message     string
	RecoveredID interface{}
}

func (e *ParseError) Error() string {
	return e.Message
}

var idFromRawPattern = regexp.MustCompile(`"id"\s*:\s*("(?:[^"\\]|\\.)*"|-?[0-9]+(?:\.[0-9]+)?)`)

// recoverRequestID makes a best-effort attempt to extract an "id" value from
// a payload that otherwise failed to parse as JSON.
func recoverRequestID(data []byte) interface{} {
	m := idFromRawPattern.FindSubmatch(data)
	if m == nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(m[1], &v); err != nil {
		return nil
	}
	return v
}

func isValidJSONRPCID(id interface{}) bool {
	switch id.(type) {
	case string, float64, int, int64, json.Number:
		return true
	default:
		return false
	}
}

func isValidJSONRPCParams(params interface{}) bool {
	switch params.(type) {
	case map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}

// decodeMessage classifies and decodes a raw JSON-RPC payload into a
// *JSONRPCRequest, *JSONRPCNotification, or *JSONRPCResponse. On failure it
// returns a *ParseError describing exactly what was wrong, with a best-effort
// recovered ID when one could be found.
func decodeMessage(data []byte) (interface{}, *ParseError) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{
			Code:        ParseErrorMalformedJson,
			Message:     "malformed json: " + err.Error(),
			RecoveredID: recoverRequestID(data),
		}
	}

	jv, hasJSONRPC := raw["jsonrpc"]
	if !hasJSONRPC {
		return nil, &ParseError{Code: ParseErrorMissingJsonrpc, Message: "missing jsonrpc field", RecoveredID: raw["id"]}
	}
	version, ok := jv.(string)
	if !ok || version != JSONRPCVersion {
		return nil, &ParseError{Code: ParseErrorInvalidJsonrpcVersion, Message: "invalid jsonrpc version", RecoveredID: raw["id"]}
	}

	idRaw, hasID := raw["id"]
	methodRaw, hasMethod := raw["method"]
	_, hasResult := raw["result"]
	_, hasError := raw["error"]

	switch {
	case hasMethod:
		method, ok := methodRaw.(string)
		if !ok {
			return nil, &ParseError{Code: ParseErrorInvalidMethodType, Message: "method must be a string", RecoveredID: idRaw}
		}
		if method == "" {
			return nil, &ParseError{Code: ParseErrorMissingMethod, Message: "missing method", RecoveredID: idRaw}
		}
		if p, ok := raw["params"]; ok && p != nil && !isValidJSONRPCParams(p) {
			return nil, &ParseError{Code: ParseErrorInvalidParamsType, Message: "params must be an object or array", RecoveredID: idRaw}
		}

		if hasID {
			if idRaw == nil {
				return nil, &ParseError{Code: ParseErrorMissingId, Message: "id must not be null for a request"}
			}
			if !isValidJSONRPCID(idRaw) {
				return nil, &ParseError{Code: ParseErrorInvalidIdType, Message: "id must be a string or number", RecoveredID: idRaw}
			}
			var req JSONRPCRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, &ParseError{Code: ParseErrorMalformedJson, Message: err.Error(), RecoveredID: idRaw}
			}
			return &req, nil
		}

		var notif JSONRPCNotification
		if err := json.Unmarshal(data, &notif); err != nil {
			return nil, &ParseError{Code: ParseErrorMalformedJson, Message: err.Error()}
		}
		return &notif, nil

	case hasResult || hasError:
		if !hasID {
			return nil, &ParseError{Code: ParseErrorMissingId, Message: "response missing id"}
		}
		if !isValidJSONRPCID(idRaw) {
			return nil, &ParseError{Code: ParseErrorInvalidIdType, Message: "id must be a string or number", RecoveredID: idRaw}
		}
		var resp JSONRPCResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, &ParseError{Code: ParseErrorMalformedJson, Message: err.Error(), RecoveredID: idRaw}
		}
		return &resp, nil

	default:
		return nil, &ParseError{Code: ParseErrorMissingMethod, Message: "message has neither method nor result/error", RecoveredID: idRaw}
	}
}

// encodeRequest serializes a JSON-RPC request frame.
func encodeRequest(req *JSONRPCRequest) ([]byte, error) {
	req.JSONRPC = JSONRPCVersion
	return json.Marshal(req)
}

// encodeResponseOK serializes a successful JSON-RPC response frame.
func encodeResponseOK(id interface{}, result interface{}) ([]byte, error) {
	return json.Marshal(&JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: result})
}

// encodeResponseErr serializes an errored JSON-RPC response frame.
func encodeResponseErr(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	return json.Marshal(newJSONRPCErrorResponse(id, code, message, data))
}

// encodeNotification serializes a JSON-RPC notification frame.
func encodeNotification(n Notification) ([]byte, error) {
	return json.Marshal(newJSONRPCNotification(n))
}
