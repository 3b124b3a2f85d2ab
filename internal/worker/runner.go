package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"PeerTasks/internal/domain"
	"PeerTasks/internal/service"
)

// Runner converts queued tasks of supported types into terminal states. It
// claims through the shared queue, so any number of runner goroutines or
// processes may poll the same database file.
type Runner struct {
	queue        *service.TaskQueue
	registry     *Registry
	workerID     string
	taskTypes    []string
	pollInterval time.Duration
}

func NewRunner(queue *service.TaskQueue, registry *Registry, workerID string, taskTypes []string, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Runner{
		queue:        queue,
		registry:     registry,
		workerID:     workerID,
		taskTypes:    taskTypes,
		pollInterval: pollInterval,
	}
}

// Run polls until ctx is cancelled, sleeping pollInterval between empty polls.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("worker %s started, task types=%v, poll=%s", r.workerID, r.taskTypes, r.pollInterval)
	for {
		claimed, err := r.RunOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker %s claim failed: %v", r.workerID, err)
		}
		if claimed {
			continue
		}
		select {
		case <-ctx.Done():
			log.Printf("worker %s stopped", r.workerID)
			return
		case <-time.After(r.pollInterval):
		}
	}
}

// RunOne claims and executes at most one task, for batch and test usage.
// It reports whether a task was claimed.
func (r *Runner) RunOne(ctx context.Context) (bool, error) {
	task, err := r.queue.ClaimNext(ctx, r.workerID, r.taskTypes)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	r.execute(ctx, task)
	return true, nil
}

func (r *Runner) execute(ctx context.Context, task *domain.Task) {
	result, err := r.invoke(ctx, task)
	if err != nil {
		if _, cerr := r.queue.Complete(ctx, task.TaskID, domain.StatusFailed, nil, err.Error()); cerr != nil {
			log.Printf("worker %s complete(failed) for task %s failed: %v", r.workerID, task.TaskID, cerr)
		}
		log.Printf("worker %s task %s failed: %v", r.workerID, task.TaskID, err)
		return
	}
	if _, cerr := r.queue.Complete(ctx, task.TaskID, domain.StatusCompleted, result, ""); cerr != nil {
		log.Printf("worker %s complete(completed) for task %s failed: %v", r.workerID, task.TaskID, cerr)
		return
	}
	log.Printf("worker %s task %s completed", r.workerID, task.TaskID)
}

// invoke runs the registered handler, mapping a missing handler or a panic
// to an ordinary execution error.
func (r *Runner) invoke(ctx context.Context, task *domain.Task) (result json.RawMessage, err error) {
	h, ok := r.registry.Get(task.TaskType)
	if !ok {
		return nil, fmt.Errorf("unsupported task type: %s", task.TaskType)
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("worker %s handler panic on task %s: %v\n%s", r.workerID, task.TaskID, rec, debug.Stack())
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, task)
}
