// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import "time"

// TaskStatus is a task's position in the task state machine.
type TaskStatus string

const (
	TaskStatusWorking       TaskStatus = "working"
	TaskStatusInputRequired TaskStatus = "input_required"
	TaskStatusCompleted     TaskStatus = "completed"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusCancelled     TaskStatus = "cancelled"
)

// isTerminal reports whether a status admits no further transitions.
func (s TaskStatus) isTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Task is an experimental long-running operation tracked by the task manager.
type Task struct {
	ID            string      `json:"id"`
	Status        TaskStatus  `json:"status"`
	StatusMessage string      `json:"statusMessage,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	LastUpdatedAt time.Time   `json:"lastUpdatedAt"`
	TTL           int64       `json:"ttl,omitempty"`
	PollInterval  int64       `json:"pollInterval,omitempty"`
	Result        interface{} `json:"result,omitempty"`
}

// CreateTaskRequest describes a request to create a task.
type CreateTaskRequest struct {
	Request
	Params struct {
		TTL          int64 `json:"ttl,omitempty"`
		PollInterval int64 `json:"pollInterval,omitempty"`
	} `json:"params,omitempty"`
}

// CreateTaskResult describes the response to tasks/create.
type CreateTaskResult struct {
	Task Task `json:"task"`
}

// GetTaskResult describes the response to tasks/get. It mirrors Task's fields
// directly rather than nesting, matching how a poll response is consumed.
type GetTaskResult struct {
	Task
}

// CancelTaskResult describes the response to tasks/cancel.
type CancelTaskResult struct {
	Task
}

// ListTasksRequest describes a request to list tasks.
type ListTasksRequest struct {
	PaginatedRequest
}

// ListTasksResult describes the response to tasks/list.
type ListTasksResult struct {
	PaginatedResult
	Tasks []Task `json:"tasks"`
}
