package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"PeerTasks/internal/db"
	"PeerTasks/internal/domain"
	"PeerTasks/internal/service"
)

func newTestQueue(t *testing.T) *service.TaskQueue {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.EnsureSchema(context.Background(), conn); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return service.NewTaskQueue(conn)
}

func echoRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	err := reg.Register("echo", func(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
		return task.Payload, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestRunOneEndToEnd(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Submit(ctx, service.SubmitParams{TaskType: "echo", ModelName: "m", Payload: json.RawMessage(`{"x":1}`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	r := NewRunner(q, echoRegistry(t), "w1", nil, 10*time.Millisecond)
	claimed, err := r.RunOne(ctx)
	if err != nil {
		t.Fatalf("run one: %v", err)
	}
	if !claimed {
		t.Fatal("expected to claim the queued task")
	}

	got, err := q.Get(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("get: task=%v err=%v", got, err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if string(got.Result) != `{"x":1}` {
		t.Errorf("result = %s", got.Result)
	}
}

func TestRunOneEmptyQueue(t *testing.T) {
	q := newTestQueue(t)
	r := NewRunner(q, echoRegistry(t), "w1", nil, 10*time.Millisecond)
	claimed, err := r.RunOne(context.Background())
	if err != nil {
		t.Fatalf("run one: %v", err)
	}
	if claimed {
		t.Error("nothing to claim on an empty queue")
	}
}

func TestUnsupportedTaskTypeFails(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Submit(ctx, service.SubmitParams{TaskType: "text-generation", ModelName: "m"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// claim filter omitted: the runner picks the task up but has no handler
	r := NewRunner(q, echoRegistry(t), "w1", nil, 10*time.Millisecond)
	if _, err := r.RunOne(ctx); err != nil {
		t.Fatalf("run one: %v", err)
	}

	got, _ := q.Get(ctx, id)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "unsupported task type") {
		t.Errorf("error = %v", got.Error)
	}
}

func TestTypeFilterSkipsOtherTypes(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Submit(ctx, service.SubmitParams{TaskType: "text-generation", ModelName: "m"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	r := NewRunner(q, echoRegistry(t), "w1", []string{"echo"}, 10*time.Millisecond)
	claimed, err := r.RunOne(ctx)
	if err != nil {
		t.Fatalf("run one: %v", err)
	}
	if claimed {
		t.Error("runner must not claim task types outside its filter")
	}
}

func TestHandlerErrorRecordedAsFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	reg := NewRegistry()
	reg.Register("flaky", func(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
		return nil, errors.New("model unavailable")
	})

	id, _ := q.Submit(ctx, service.SubmitParams{TaskType: "flaky", ModelName: "m"})
	r := NewRunner(q, reg, "w1", nil, 10*time.Millisecond)
	if _, err := r.RunOne(ctx); err != nil {
		t.Fatalf("run one: %v", err)
	}

	got, _ := q.Get(ctx, id)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == nil || *got.Error != "model unavailable" {
		t.Errorf("error = %v", got.Error)
	}
}

func TestHandlerPanicRecordedAsFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	reg := NewRegistry()
	reg.Register("panicky", func(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
		panic("boom")
	})

	id, _ := q.Submit(ctx, service.SubmitParams{TaskType: "panicky", ModelName: "m"})
	r := NewRunner(q, reg, "w1", nil, 10*time.Millisecond)
	if _, err := r.RunOne(ctx); err != nil {
		t.Fatalf("run one: %v", err)
	}

	got, _ := q.Get(ctx, id)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "handler panic") {
		t.Errorf("error = %v", got.Error)
	}
}

func TestPoolDrainsQueue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	const tasks = 10
	ids := make([]string, 0, tasks)
	for i := 0; i < tasks; i++ {
		id, err := q.Submit(ctx, service.SubmitParams{TaskType: "echo", ModelName: "m"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, id)
	}

	r := NewRunner(q, echoRegistry(t), "w1", nil, 10*time.Millisecond)
	pool := NewPool(ctx, r, 3)
	pool.Start()
	defer pool.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for {
		done := 0
		for _, id := range ids {
			got, err := q.Get(ctx, id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != nil && got.Status == domain.StatusCompleted {
				done++
			}
		}
		if done == tasks {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pool drained %d/%d tasks before deadline", done, tasks)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
