package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PeerTasks/internal/domain"
	"PeerTasks/internal/repo"

	"github.com/google/uuid"
)

var (
	// ErrInvalidStatus is returned by Complete for a non-terminal status value.
	ErrInvalidStatus = errors.New("invalid completion status")
	// ErrEmptyWorkerID is returned by ClaimNext when no worker identity is given.
	ErrEmptyWorkerID = errors.New("worker id must not be empty")
)

// TaskQueue is the unit of truth for task state. Local workers and the RPC
// service both operate through it against the same database file.
type TaskQueue struct {
	db *sql.DB
}

func NewTaskQueue(conn *sql.DB) *TaskQueue {
	return &TaskQueue{db: conn}
}

// DB exposes the underlying connection for health checks.
func (q *TaskQueue) DB() *sql.DB {
	return q.db
}

type SubmitParams struct {
	TaskID    string // optional; generated when empty
	TaskType  string
	ModelName string
	Payload   json.RawMessage
}

// Submit inserts a queued task and returns its id.
func (q *TaskQueue) Submit(ctx context.Context, p SubmitParams) (string, error) {
	if p.TaskType == "" {
		return "", errors.New("task_type must not be empty")
	}
	if p.ModelName == "" {
		return "", errors.New("model_name must not be empty")
	}
	taskID := p.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	now := repo.Now()
	t := domain.Task{
		TaskID:    taskID,
		TaskType:  p.TaskType,
		ModelName: p.ModelName,
		Payload:   normalizePayload(p.Payload),
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertTask(ctx, q.db, &t); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return taskID, nil
}

// Get returns the task for id, or nil when id is empty or unknown.
func (q *TaskQueue) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, nil
	}
	return repo.GetTaskByID(ctx, q.db, taskID)
}

// ClaimNext claims the oldest queued task whose type is in taskTypes (any
// type when taskTypes is empty). Nil without error means nothing claimable.
func (q *TaskQueue) ClaimNext(ctx context.Context, workerID string, taskTypes []string) (*domain.Task, error) {
	if workerID == "" {
		return nil, ErrEmptyWorkerID
	}
	return repo.ClaimNext(ctx, q.db, workerID, taskTypes)
}

// Complete finalizes a task with one of the terminal statuses. result is
// recorded only for completed, errMsg only for failed/cancelled. Returns
// true iff the row now carries the requested status.
func (q *TaskQueue) Complete(ctx context.Context, taskID, status string, result json.RawMessage, errMsg string) (bool, error) {
	if !domain.IsTerminal(status) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return repo.CompleteTask(ctx, q.db, taskID, status, result, errMsg)
}

// Wait polls until the task reaches a terminal status or timeout elapses,
// then returns whatever state exists at that point (possibly nil). Timeout
// is never an error.
func (q *TaskQueue) Wait(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (*domain.Task, error) {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		t, err := q.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t != nil && domain.IsTerminal(t.Status) {
			return t, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return t, nil
		}
		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// normalizePayload keeps only JSON object documents; anything else becomes
// the empty document. Handlers interpret their own payload shape.
func normalizePayload(payload json.RawMessage) json.RawMessage {
	empty := json.RawMessage(`{}`)
	if len(payload) == 0 || !json.Valid(payload) {
		return empty
	}
	for _, c := range payload {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return payload
		default:
			return empty
		}
	}
	return empty
}
