package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"PeerTasks/internal/domain"
)

// Handler executes one task and returns its result document. A returned
// error (or panic) is recorded on the task as a failed terminal state.
type Handler func(ctx context.Context, task *domain.Task) (json.RawMessage, error)

// Registry maps task_type to its handler. Adding a new task type only needs
// a Register call, no queue changes.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(taskType string, h Handler) error {
	if taskType == "" || h == nil {
		return fmt.Errorf("invalid handler registration for %q", taskType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = h
	return nil
}

func (r *Registry) Get(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Types returns the registered task types, usable as the claim filter.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for tt := range r.handlers {
		out = append(out, tt)
	}
	return out
}
