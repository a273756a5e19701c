// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package errors

import (
	"errors"
)

// Core protocol-level errors surfaced by registries and managers before they
// are translated into JSON-RPC error codes by the caller.
var (
	ErrInvalidParams    = errors.New("invalid params")
	ErrMissingParams    = errors.New("missing required params")
	ErrResourceNotFound = errors.New("resource not found")
	ErrMethodNotFound   = errors.New("method not found")
	ErrToolNotFound     = errors.New("tool not found")
	ErrPromptNotFound   = errors.New("prompt not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrSchemaValidation = errors.New("schema validation failed")
	ErrAlreadyExists    = errors.New("already registered")

	// Client-side lifecycle errors.
	ErrInvalidServerURL   = errors.New("invalid server URL")
	ErrAlreadyInitialized = errors.New("client already initialized")
	ErrNotInitialized     = errors.New("client not initialized")
)
