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
	"time"

	"github.com/google/uuid"

	"github.com/KotDath/mcpp-sub003/internal/errors"
)

// taskTransitions enumerates the allowed state-machine moves. A status not
// present as a key, or a target not present in its value set, is rejected.
var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusWorking: {
		TaskStatusInputRequired: true,
		TaskStatusCompleted:     true,
		TaskStatusFailed:        true,
		TaskStatusCancelled:     true,
	},
	TaskStatusInputRequired: {
		TaskStatusWorking:   true,
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
		TaskStatusCancelled: true,
	},
}

// taskManager owns the lifecycle of experimental long-running tasks: a small
// state machine (Working is the only entry state), TTL-based expiry, and
// paginated listing. One sweep goroutine, mirroring the session timeout
// manager's ticker, evicts tasks whose TTL has elapsed.
type taskManager struct {
	mu sync.Mutex

	tasks      map[string]*Task
	tasksOrder []string

	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// newTaskManager creates an empty task registry and starts its expiry sweep.
func newTaskManager() *taskManager {
	m := &taskManager{
		tasks:         make(map[string]*Task),
		sweepInterval: time.Second,
		stopCh:        make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// create starts a new task in the Working state.
func (m *taskManager) create(ttl, pollInterval int64) *Task {
	now := time.Now().UTC()
	task := &Task{
		ID:            uuid.NewString(),
		Status:        TaskStatusWorking,
		CreatedAt:     now,
		LastUpdatedAt: now,
		TTL:           ttl,
		PollInterval:  pollInterval,
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.tasksOrder = append(m.tasksOrder, task.ID)
	m.mu.Unlock()

	return task
}

// get retrieves a task by id. A purged or unknown id reports not found.
func (m *taskManager) get(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// updateStatus transitions a task, enforcing the state table. A transition
// out of a terminal state, one the table does not list, or an unknown id is
// an error.
func (m *taskManager) updateStatus(id string, status TaskStatus, message string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", errors.ErrTaskNotFound, id)
	}
	if task.Status.isTerminal() {
		return Task{}, fmt.Errorf("task %s is already in terminal state %s", id, task.Status)
	}
	if !taskTransitions[task.Status][status] {
		return Task{}, fmt.Errorf("invalid task transition %s -> %s", task.Status, status)
	}

	task.Status = status
	task.StatusMessage = message
	task.LastUpdatedAt = time.Now().UTC()
	return *task, nil
}

// setResult records a task's result, valid only as part of a transition to
// Completed.
func (m *taskManager) setResult(id string, result interface{}) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", errors.ErrTaskNotFound, id)
	}
	if task.Status.isTerminal() {
		return Task{}, fmt.Errorf("task %s is already in terminal state %s", id, task.Status)
	}
	if !taskTransitions[task.Status][TaskStatusCompleted] {
		return Task{}, fmt.Errorf("invalid task transition %s -> %s", task.Status, TaskStatusCompleted)
	}

	task.Status = TaskStatusCompleted
	task.Result = result
	task.LastUpdatedAt = time.Now().UTC()
	return *task, nil
}

// cancel moves a task to Cancelled. A no-op error if it's already terminal.
func (m *taskManager) cancel(id string) (Task, error) {
	return m.updateStatus(id, TaskStatusCancelled, "cancelled")
}

// list returns every tracked task in creation order.
func (m *taskManager) list() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]Task, 0, len(m.tasks))
	for _, id := range m.tasksOrder {
		if task, ok := m.tasks[id]; ok {
			tasks = append(tasks, *task)
		}
	}
	return tasks
}

// cleanupExpired marks every non-terminal task whose TTL has elapsed since
// creation as Failed, and evicts terminal tasks whose last update is at
// least one TTL old (so a caller polling a just-expired task still observes
// the Failed/"expired" result before it disappears). Tasks without a TTL are
// neither expired nor evicted.
func (m *taskManager) cleanupExpired() {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	var remaining []string
	for _, id := range m.tasksOrder {
		task, ok := m.tasks[id]
		if !ok {
			continue
		}

		wasTerminal := task.Status.isTerminal()
		if !wasTerminal && task.TTL > 0 && now.Sub(task.CreatedAt) >= time.Duration(task.TTL)*time.Second {
			task.Status = TaskStatusFailed
			task.StatusMessage = "expired"
			task.LastUpdatedAt = now
			wasTerminal = true
		} else if wasTerminal && task.TTL > 0 && now.Sub(task.LastUpdatedAt) >= time.Duration(task.TTL)*time.Second {
			delete(m.tasks, id)
			continue
		}
		remaining = append(remaining, id)
	}
	m.tasksOrder = remaining
}

// sweepLoop periodically evicts expired tasks until Stop is called.
func (m *taskManager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stopCh:
			return
		}
	}
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (m *taskManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// handleCreateTask handles tasks/create.
func (m *taskManager) handleCreateTask(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	var params struct {
		TTL          int64 `json:"ttl,omitempty"`
		PollInterval int64 `json:"pollInterval,omitempty"`
	}
	if err := parseJSONRPCParams(req.Params, &params); err != nil {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, errors.ErrInvalidParams.Error(), err.Error()), nil
	}

	task := m.create(params.TTL, params.PollInterval)
	return CreateTaskResult{Task: *task}, nil
}

// handleGetTask handles tasks/get.
func (m *taskManager) handleGetTask(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	id, errResp, ok := taskIDFromParams(req)
	if !ok {
		return errResp, nil
	}

	task, found := m.get(id)
	if !found {
		return newJSONRPCErrorResponse(
			req.ID,
			ErrCodeMethodNotFound,
			fmt.Sprintf("%v: %s", errors.ErrTaskNotFound, id),
			nil,
		), nil
	}
	return GetTaskResult{Task: task}, nil
}

// handleCancelTask handles tasks/cancel.
func (m *taskManager) handleCancelTask(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	id, errResp, ok := taskIDFromParams(req)
	if !ok {
		return errResp, nil
	}

	task, err := m.cancel(id)
	if err != nil {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, err.Error(), nil), nil
	}
	return CancelTaskResult{Task: task}, nil
}

// handleListTasks handles tasks/list.
func (m *taskManager) handleListTasks(ctx context.Context, req *JSONRPCRequest) (JSONRPCMessage, error) {
	taskPtrs := m.list()

	page, next := paginate(taskPtrs, cursorFromParams(req.Params), defaultPageSize)
	return ListTasksResult{
		PaginatedResult: PaginatedResult{NextCursor: next},
		Tasks:           page,
	}, nil
}

// taskIDFromParams extracts the required "taskId" string from a request's params.
func taskIDFromParams(req *JSONRPCRequest) (id string, errResp JSONRPCMessage, ok bool) {
	paramsMap, ok := req.Params.(map[string]interface{})
	if !ok {
		return "", newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, errors.ErrInvalidParams.Error(), nil), false
	}
	id, ok = paramsMap["taskId"].(string)
	if !ok || id == "" {
		return "", newJSONRPCErrorResponse(req.ID, ErrCodeInvalidParams, errors.ErrMissingParams.Error(), nil), false
	}
	return id, nil, true
}
