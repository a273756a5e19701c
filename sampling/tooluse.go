// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package sampling

import (
	"context"
	"fmt"
)

// DefaultMaxIterations bounds every tool-use loop RunToolUseLoop runs;
// requests carry no field that overrides it.
const DefaultMaxIterations = 10

// ErrToolLoopOverflow is returned when a tool-use loop exhausts its
// iteration budget without the model producing a final, non-tool-use
// result.
var ErrToolLoopOverflow = fmt.Errorf("sampling tool-use loop exceeded max iterations")

// ToolCaller performs the synchronous tools/call round trip a tool-use loop
// needs to resolve a model-issued ToolUseContent. Implementations typically
// close over a session's own registry dispatch.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error)
}

// ToolCallerFunc adapts a function to ToolCaller.
type ToolCallerFunc func(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error)

func (f ToolCallerFunc) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	return f(ctx, name, args)
}

// RunToolUseLoop implements the bounded sampling tool-use loop: it calls
// handler with the growing message list, and for every ToolUseContent the
// model returns, invokes caller and appends a ToolResultContent message
// before calling handler again. It stops and returns as soon as handler
// returns a result whose content is not a ToolUseContent (regardless of
// StopReason, unless StopReason is exactly "toolUse" with non-tool-use
// content, which is treated as malformed and also ends the loop since there
// is nothing further to resolve).
func RunToolUseLoop(
	ctx context.Context,
	req *SamplingCreateMessageRequest,
	handler SamplingHandler,
	caller ToolCaller,
) (*SamplingCreateMessageResult, error) {
	if len(req.Params.Tools) == 0 || caller == nil {
		return handler.HandleSamplingRequest(ctx, req)
	}

	maxIterations := DefaultMaxIterations
	messages := append([]SamplingMessage(nil), req.Params.Messages...)

	for iteration := 0; iteration < maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		iterReq := *req
		iterReq.Params.Messages = messages

		result, err := handler.HandleSamplingRequest(ctx, &iterReq)
		if err != nil {
			return nil, err
		}

		toolUse, ok := result.Content.(ToolUseContent)
		if !ok {
			return result, nil
		}

		messages = append(messages, SamplingMessage{Role: "assistant", Content: toolUse})

		callResult, callErr := caller.CallTool(ctx, toolUse.Name, toolUse.Arguments)
		isError := callErr != nil
		var content Content
		if callErr != nil {
			content = textToContent(callErr.Error())
		} else {
			content = resultToContent(callResult)
		}

		messages = append(messages, SamplingMessage{
			Role: "user",
			Content: ToolResultContent{
				Type:      "tool_result",
				ToolUseID: toolUse.ID,
				Content:   content,
				IsError:   isError,
			},
		})
	}

	return nil, ErrToolLoopOverflow
}

// resultToContent renders a tool invocation's result as sampling Content so
// it can be folded back into the message list as a ToolResultContent's
// payload.
func resultToContent(result *CallToolResult) Content {
	if result == nil {
		return textToContent("")
	}
	if text, ok := result.Content.(map[string]string); ok {
		if msg, ok := text["text"]; ok {
			return textToContent(msg)
		}
		if msg, ok := text["error"]; ok {
			return textToContent(msg)
		}
	}
	return textToContent(fmt.Sprintf("%v", result.Content))
}
