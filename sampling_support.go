// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/KotDath/mcpp-sub003/sampling"
)

// ===============================================
// Sampling related type definitions
// ===============================================

// SamplingContent - Sampling message content interface
type SamplingContent interface {
	GetType() string
}

// SamplingTextContent - text content
type SamplingTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (t SamplingTextContent) GetType() string { return t.Type }

// SamplingImageContent - image content
type SamplingImageContent struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (i SamplingImageContent) GetType() string { return i.Type }

// SamplingMessage - Sampling message
type SamplingMessage struct {
	Role    string          `json:"role"` // "user", "assistant", "system"
	Content SamplingContent `json:"content"`
}

// SamplingModelPreferences - Model Preferences
type SamplingModelPreferences struct {
	Hints                []string `json:"hints,omitempty"`
	CostPriority         *float64 `json:"costPriority,omitempty"`         // 0-1
	SpeedPriority        *float64 `json:"speedPriority,omitempty"`        // 0-1
	IntelligencePriority *float64 `json:"intelligencePriority,omitempty"` // 0-1
}

// SamplingUsage - Token usage
type SamplingUsage struct {
	InputTokens  *int `json:"inputTokens,omitempty"`
	OutputTokens *int `json:"outputTokens,omitempty"`
	TotalTokens  *int `json:"totalTokens,omitempty"`
}

// SamplingCreateMessageParams - Sampling request parameters
type SamplingCreateMessageParams struct {
	Messages         []SamplingMessage         `json:"messages"`
	ModelPreferences *SamplingModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt     *string                   `json:"systemPrompt,omitempty"`
	MaxTokens        *int                      `json:"maxTokens,omitempty"`
	Temperature      *float64                  `json:"temperature,omitempty"`
	StopSequences    []string                  `json:"stopSequences,omitempty"`
}

// SamplingCreateMessageResult - Sampling response
type SamplingCreateMessageResult struct {
	Role       string          `json:"role"`
	Content    SamplingContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stopReason"`
	Usage      *SamplingUsage  `json:"usage,omitempty"`
}

// SamplingHandler - Sampling Processor Interface
type SamplingHandler interface {
	HandleSamplingRequest(ctx context.Context, req *sampling.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error)
}

// SamplingSender - Sampling transmitter interface
type SamplingSender interface {
	SendSamplingRequest(ctx context.Context, req *sampling.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error)
}

// ===============================================
// Client Sampling Support
// ===============================================

type SamplingClientConfig struct {
	DefaultModel        string            `json:"default_model"`
	AutoApprove         bool              `json:"auto_approve"`
	MaxTokensPerRequest int               `json:"max_tokens_per_request"`
	ModelMappings       map[string]string `json:"model_mappings"`
	TimeoutSeconds      int               `json:"timeout_seconds"`
}

// Sampling fields for a Client, kept in ClientSamplingMap keyed by the client pointer (not embedded in Client)
type ClientSamplingSupport struct {
	SamplingHandler SamplingHandler       `json:"-"`
	samplingConfig  *SamplingClientConfig `json:"sampling_config,omitempty"`
	SamplingEnabled bool                  `json:"sampling_enabled"`
}

// Global mapping to store client Sampling support information
var ClientSamplingMap = make(map[*Client]*ClientSamplingSupport)

// WithSamplingHandler - Set the option function of the Sampling processor
func WithSamplingHandler(handler SamplingHandler) ClientOption {
	return func(c *Client) {
		if ClientSamplingMap[c] == nil {
			ClientSamplingMap[c] = &ClientSamplingSupport{}
		}
		ClientSamplingMap[c].SamplingHandler = handler
		ClientSamplingMap[c].SamplingEnabled = true
	}
}

// WithSamplingConfig - Set the option function of Sampling configuration
func WithSamplingConfig(config *SamplingClientConfig) ClientOption {
	return func(c *Client) {
		if ClientSamplingMap[c] == nil {
			ClientSamplingMap[c] = &ClientSamplingSupport{}
		}
		ClientSamplingMap[c].samplingConfig = config
		if config != nil {
			ClientSamplingMap[c].SamplingEnabled = true
		}
	}
}

// HandleSamplingRequest - Processing Sampling requests from the server
func (c *Client) HandleSamplingRequest(ctx context.Context, req *sampling.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error) {
	samplingSupport := ClientSamplingMap[c]
	if samplingSupport == nil || !samplingSupport.SamplingEnabled {
		return nil, fmt.Errorf("sampling not enabled")
	}

	if samplingSupport.SamplingHandler == nil {
		return nil, fmt.Errorf("sampling handler not configured")
	}

	// Apply client configuration restrictions
	if samplingSupport.samplingConfig != nil {
		if req.Params.MaxTokens != nil && *req.Params.MaxTokens > samplingSupport.samplingConfig.MaxTokensPerRequest {
			return nil, fmt.Errorf("max tokens (%d) exceeds limit (%d)",
				*req.Params.MaxTokens, samplingSupport.samplingConfig.MaxTokensPerRequest)
		}
	}

	// Using timeout context
	timeout := 60 * time.Second
	if samplingSupport.samplingConfig != nil && samplingSupport.samplingConfig.TimeoutSeconds > 0 {
		timeout = time.Duration(samplingSupport.samplingConfig.TimeoutSeconds) * time.Second
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Delegate to the configured handler.
	return samplingSupport.SamplingHandler.HandleSamplingRequest(ctxWithTimeout, req)
}

// GetSamplingConfig - Get Sampling Configuration
func (c *Client) GetSamplingConfig() *SamplingClientConfig {
	samplingSupport := ClientSamplingMap[c]
	if samplingSupport == nil {
		return nil
	}
	return samplingSupport.samplingConfig
}

// IsSamplingEnabled - Check whether Sampling is enabled
func (c *Client) IsSamplingEnabled() bool {
	samplingSupport := ClientSamplingMap[c]
	return samplingSupport != nil && samplingSupport.SamplingEnabled
}

// ===============================================
// Server Sampling Support
// ===============================================

// SamplingServerConfig - Server Sampling Configuration
type SamplingServerConfig struct {
	MaxTokensLimit      int      `json:"max_tokens_limit"`
	RateLimitPerMinute  int      `json:"rate_limit_per_minute"`
	AllowedContentTypes []string `json:"allowed_content_types"`
	RequireApproval     bool     `json:"require_approval"`
}

// Sampling fields for a Server, kept in ServerSamplingMap keyed by the server pointer (not embedded in Server)
type serverSamplingSupport struct {
	SamplingEnabled bool                  `json:"sampling_enabled"`
	samplingConfig  *SamplingServerConfig `json:"sampling_config,omitempty"`
	SamplingHandler SamplingHandler
}

// Global mapping to store the server's sampling support information
var ServerSamplingMap = make(map[*Server]*serverSamplingSupport)

// WithSamplingEnabled - Option function to enable Sampling function
func WithSamplingEnabled(enabled bool) ServerOption {
	return func(s *Server) {
		if ServerSamplingMap[s] == nil {
			ServerSamplingMap[s] = &serverSamplingSupport{}
		}
		ServerSamplingMap[s].SamplingEnabled = enabled
	}
}

// WithSamplingConfigServer - Set the option function for Sampling configuration (server version)
func WithSamplingConfigServer(config *SamplingServerConfig) ServerOption {
	return func(s *Server) {
		if ServerSamplingMap[s] == nil {
			ServerSamplingMap[s] = &serverSamplingSupport{}
		}
		ServerSamplingMap[s].samplingConfig = config
		ServerSamplingMap[s].SamplingEnabled = true
	}
}

// SendSamplingRequest - Server implements the SamplingSender interface
func (s *Server) SendSamplingRequest(ctx context.Context, req *sampling.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error) {
	// Check if Sampling is enabled
	samplingSupport := ServerSamplingMap[s]
	if samplingSupport == nil || !samplingSupport.SamplingEnabled {
		return nil, fmt.Errorf("sampling not enabled")
	}

	// Check if SamplingHandler exists
	if samplingSupport.SamplingHandler == nil {
		return nil, fmt.Errorf("sampling handler not configured")
	}

	// Call SamplingHandler to process the request
	return samplingSupport.SamplingHandler.HandleSamplingRequest(ctx, req)
}

// IsSamplingEnabled - Check whether Sampling is enabled
func (s *Server) IsSamplingEnabled() bool {
	samplingSupport := ServerSamplingMap[s]
	return samplingSupport != nil && samplingSupport.SamplingEnabled
}

// GetSamplingConfig - Get Sampling Configuration
func (s *Server) GetSamplingConfig() *SamplingServerConfig {
	samplingSupport := ServerSamplingMap[s]
	if samplingSupport == nil {
		return nil
	}
	return samplingSupport.samplingConfig
}

// ===============================================
// Sampling context support
// ===============================================

// Context keys for sampling
type samplingContextKey string

const (
	SamplingSenderKey samplingContextKey = "sampling_sender"
)

// GetSamplingSender - Get the Sampling sender from the context
func GetSamplingSender(ctx context.Context) (SamplingSender, bool) {
	sender, ok := ctx.Value(SamplingSenderKey).(SamplingSender)
	return sender, ok
}

// SetSamplingSender - Set the Sampling sender to the context
func SetSamplingSender(ctx context.Context, sender *Server) context.Context {
	return context.WithValue(ctx, SamplingSenderKey, sender)
}

// ===============================================
// Default Sampling implementation
// ===============================================

type DefaultSamplingHandler struct {
	config *SamplingClientConfig
}

// NewDefaultSamplingHandler - Creating a default Sampling processor
func NewDefaultSamplingHandler(config *SamplingClientConfig) SamplingHandler {
	if config == nil {
		config = &SamplingClientConfig{
			DefaultModel:        "gpt-3.5-turbo",
			AutoApprove:         false,
			MaxTokensPerRequest: 2000,
			TimeoutSeconds:      60,
		}
	}
	return &DefaultSamplingHandler{
		config: config,
	}
}

// HandleSamplingRequest - Processing Sampling requests (simulation implementation)
func (h *DefaultSamplingHandler) HandleSamplingRequest(ctx context.Context, req *sampling.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error) {
	model := h.config.DefaultModel

	// Check Model Hints
	if req.Params.ModelPreferences != nil && len(req.Params.ModelPreferences.Hints) > 0 {
		for _, hint := range req.Params.ModelPreferences.Hints {
			if mappedModel, exists := h.config.ModelMappings[hint]; exists {
				model = mappedModel
				break
			}
		}
	}

	// Stand-in response for callers that haven't wired a real LLM client yet.
	responseText := "this is a simulated response; configure a real sampling handler for production use."
	if len(req.Params.Messages) > 0 {
		if textContent, ok := req.Params.Messages[len(req.Params.Messages)-1].Content.(SamplingTextContent); ok {
			responseText = fmt.Sprintf("echo: %s", textContent.Text)
		}
	}

	return &SamplingCreateMessageResult{
		Role: "assistant",
		Content: SamplingTextContent{
			Type: "text",
			Text: responseText,
		},
		Model:      model,
		StopReason: "stop",
		Usage: &SamplingUsage{
			InputTokens:  intPtr(100),
			OutputTokens: intPtr(50),
			TotalTokens:  intPtr(150),
		},
	}, nil
}


// ===============================================
// Adapter support (handling external processors)
// ===============================================

// SamplingHandlerAdapter - Adapter structure
type SamplingHandlerAdapter struct {
	handler interface{}
}

// NewSamplingHandlerAdapter - Creating an Adapter
func NewSamplingHandlerAdapter(handler interface{}) SamplingHandler {
	return &SamplingHandlerAdapter{handler: handler}
}

// HandleSamplingRequest - Adapter Implementation
func (a *SamplingHandlerAdapter) HandleSamplingRequest(ctx context.Context, req *sampling.SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error) {
	// Using reflection to call external processors
	handlerValue := reflect.ValueOf(a.handler)
	if handlerValue.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("handler must be a pointer")
	}

	method := handlerValue.MethodByName("HandleSamplingRequest")
	if !method.IsValid() {
		return nil, fmt.Errorf("handler does not have HandleSamplingRequest method")
	}

	//Calling Methods
	results := method.Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(req),
	})

	if len(results) != 2 {
		return nil, fmt.Errorf("unexpected number of return values")
	}

	// Handling return values
	var result *SamplingCreateMessageResult
	var err error

	if !results[0].IsNil() {
		if r, ok := results[0].Interface().(*SamplingCreateMessageResult); ok {
			result = r
		} else {
			return nil, fmt.Errorf("unexpected result type")
		}
	}

	if !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok {
			err = e
		}
	}

	return result, err
}

// WrapSamplingHandler - Packaging External Processors
func WrapSamplingHandler(handler interface{}) SamplingHandler {
	return NewSamplingHandlerAdapter(handler)
}

// WithExternalSamplingHandler - Option functions to support external processors
func WithExternalSamplingHandler(handler interface{}) ClientOption {
	return func(c *Client) {
		if ClientSamplingMap[c] == nil {
			ClientSamplingMap[c] = &ClientSamplingSupport{}
		}
		ClientSamplingMap[c].SamplingHandler = WrapSamplingHandler(handler)
		ClientSamplingMap[c].SamplingEnabled = true
	}
}

// ===============================================
// Utility Functions
// ===============================================

// IntPtr FloatPtr StringPtr - Pointer utility functions
func IntPtr(i int) *int           { return &i }
func FloatPtr(f float64) *float64 { return &f }
func StringPtr(s string) *string  { return &s }

// GenerateRequestID - Request ID Generator
func GenerateRequestID() int64 {
	return time.Now().UnixNano()
}

// containsString - String Contains Check
func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateSamplingRequest - Verify Sampling Request
func validateSamplingRequest(req *sampling.SamplingCreateMessageRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}

	if req.Method != "sampling/createMessage" {
		return fmt.Errorf("invalid method: %s", req.Method)
	}

	if len(req.Params.Messages) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}

	// Verify message content
	for i, msg := range req.Params.Messages {
		if msg.Role == "" {
			return fmt.Errorf("message %d: role cannot be empty", i)
		}

		if msg.Role != "user" && msg.Role != "assistant" && msg.Role != "system" {
			return fmt.Errorf("message %d: invalid role '%s'", i, msg.Role)
		}

		if msg.Content == nil {
			return fmt.Errorf("message %d: content cannot be nil", i)
		}
	}

	return nil
}

// ===============================================
// Cleanup Function
// ===============================================

// CleanupClientSampling - Clean up client sampling support
func CleanupClientSampling(c *Client) {
	delete(ClientSamplingMap, c)
}

// CleanupServerSampling - Clean up server sampling support
func CleanupServerSampling(s *Server) {
	delete(ServerSamplingMap, s)
}

// ===============================================
// Convenience constructor
// ===============================================

// NewSamplingHandler - Creating a default Sampling processor (convenience method)
func NewSamplingHandler(config *SamplingClientConfig) SamplingHandler {
	return NewDefaultSamplingHandler(config)
}

// ===============================================
//Backwards-compatible function aliases
// ===============================================

// Keep the original lowercase function names to be compatible with existing code
func intPtr(i int) *int           { return IntPtr(i) }
func floatPtr(f float64) *float64 { return FloatPtr(f) }
func stringPtr(s string) *string  { return StringPtr(s) }

// RegisterSamplingHandler registers a Sampling processor
func (s *Server) RegisterSamplingHandler(handler SamplingHandler) {
	if ServerSamplingMap[s] == nil {
		ServerSamplingMap[s] = &serverSamplingSupport{}
	}
	ServerSamplingMap[s].SamplingHandler = handler
	ServerSamplingMap[s].SamplingEnabled = true
}
