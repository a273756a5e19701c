// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"encoding/base64"
	"strconv"
)

// defaultPageSize is used whenever a list operation isn't given an explicit
// page size.
const defaultPageSize = 50

// encodeCursor mints an opaque cursor for position, the index of the first
// item the next page should start from.
func encodeCursor(position int) Cursor {
	if position <= 0 {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(position))))
}

// decodeCursor recovers the position encoded by encodeCursor. An empty or
// malformed cursor decodes to position 0 (the first page): a client
// replaying a stale or corrupted cursor sees data rather than a hard error.
func decodeCursor(cursor Cursor) int {
	if cursor == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(cursor))
	if err != nil {
		return 0
	}
	pos, err := strconv.Atoi(string(raw))
	if err != nil || pos < 0 {
		return 0
	}
	return pos
}

// paginate slices items starting at cursor's position, returning at most
// pageSize items (defaultPageSize if pageSize <= 0) plus the cursor for the
// next page. The next cursor is empty once the final page has been reached.
func paginate[T any](items []T, cursor Cursor, pageSize int) ([]T, Cursor) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	start := decodeCursor(cursor)
	if start > len(items) {
		start = len(items)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	page := make([]T, end-start)
	copy(page, items[start:end])

	var next Cursor
	if end < len(items) {
		next = encodeCursor(end)
	}
	return page, next
}

// cursorFromParams extracts an optional "cursor" string from a raw JSON-RPC
// params map, the shape every paginated list request's params take.
func cursorFromParams(params interface{}) Cursor {
	paramsMap, ok := params.(map[string]interface{})
	if !ok {
		return ""
	}
	c, _ := paramsMap["cursor"].(string)
	return Cursor(c)
}
