// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package sampling

import (
	"context"
)

// Content - Sampling message content
type Content interface {
	GetType() string
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (t TextContent) GetType() string { return t.Type }

type ImageContent struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (i ImageContent) GetType() string { return i.Type }

type AudioContent struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (a AudioContent) GetType() string { return a.Type }

// ToolUseContent is a model-issued request to invoke a tool, emitted as
// part of a sampling/createMessage result when the model decides to use
// one of the tools offered in the request.
type ToolUseContent struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (t ToolUseContent) GetType() string { return t.Type }

// ToolResultContent carries the outcome of a tool invocation back to the
// model as a user-role message, correlated to the originating ToolUseContent
// by ToolUseID.
type ToolResultContent struct {
	Type      string      `json:"type"`
	ToolUseID string      `json:"toolUseId"`
	Content   Content     `json:"content"`
	IsError   bool        `json:"isError,omitempty"`
}

func (t ToolResultContent) GetType() string { return t.Type }

// ToolDefinition describes one tool offered to the model for a sampling
// request, mirroring a registry's tool schema closely enough to convert
// from one without this package depending on the registry package.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

type SamplingMessage struct {
	Role    string  `json:"role"` // "user", "assistant", "system"
	Content Content `json:"content"`
}

type ModelPreferences struct {
	Hints                []string `json:"hints,omitempty"`
	CostPriority         *float64 `json:"costPriority,omitempty"`         // 0-1
	SpeedPriority        *float64 `json:"speedPriority,omitempty"`        // 0-1
	IntelligencePriority *float64 `json:"intelligencePriority,omitempty"` // 0-1
}

type SamplingCreateMessageRequest struct {
	JSONRPC string                      `json:"jsonrpc"`
	ID      interface{}                 `json:"id"`
	Method  string                      `json:"method"`
	Params  SamplingCreateMessageParams `json:"params"`
}

type SamplingCreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt     *string           `json:"systemPrompt,omitempty"`
	MaxTokens        *int              `json:"maxTokens,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	StopSequences    []string
	Tools            []ToolDefinition `json:"tools,omitempty"`
}

type SamplingCreateMessageResult struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model"`
	StopReason string  `json:"stopReason"`
	Usage      interface{}
}

type SamplingSender interface {
	SendSamplingRequest(ctx context.Context, req *SamplingCreateMessageRequest) (*SamplingCreateMessageResult, error)
}
