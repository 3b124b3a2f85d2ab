package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"PeerTasks/internal/db"
	"PeerTasks/internal/domain"
)

func newTestQueue(t *testing.T) *TaskQueue {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.EnsureSchema(context.Background(), conn); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return NewTaskQueue(conn)
}

func TestSubmitValidation(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Submit(ctx, SubmitParams{ModelName: "m"}); err == nil {
		t.Error("empty task_type must be rejected")
	}
	if _, err := q.Submit(ctx, SubmitParams{TaskType: "echo"}); err == nil {
		t.Error("empty model_name must be rejected")
	}
}

func TestSubmitGeneratesID(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Submit(ctx, SubmitParams{TaskType: "echo", ModelName: "m"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	id2, err := q.Submit(ctx, SubmitParams{TaskID: "explicit", TaskType: "echo", ModelName: "m"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id2 != "explicit" {
		t.Errorf("caller-supplied id not kept: %s", id2)
	}
}

func TestSubmitPayloadNormalization(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload json.RawMessage
		want    string
	}{
		{"object kept", json.RawMessage(`{"x":1}`), `{"x":1}`},
		{"empty becomes document", nil, `{}`},
		{"array becomes document", json.RawMessage(`[1,2]`), `{}`},
		{"scalar becomes document", json.RawMessage(`"str"`), `{}`},
		{"garbage becomes document", json.RawMessage(`{not json`), `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := q.Submit(ctx, SubmitParams{TaskType: "echo", ModelName: "m", Payload: tc.payload})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			got, err := q.Get(ctx, id)
			if err != nil || got == nil {
				t.Fatalf("get: task=%v err=%v", got, err)
			}
			if string(got.Payload) != tc.want {
				t.Errorf("payload = %s, want %s", got.Payload, tc.want)
			}
		})
	}
}

func TestGetEmptyID(t *testing.T) {
	q := newTestQueue(t)
	got, err := q.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("empty id must yield nil, got %+v", got)
	}
}

func TestClaimNextEmptyWorkerID(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.ClaimNext(context.Background(), "", nil)
	if !errors.Is(err, ErrEmptyWorkerID) {
		t.Errorf("expected ErrEmptyWorkerID, got %v", err)
	}
}

func TestCompleteInvalidStatus(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Complete(context.Background(), "t1", "running", nil, "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	_, err = q.Complete(context.Background(), "t1", "done", nil, "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestWaitTimeoutReturnsCurrentState(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Submit(ctx, SubmitParams{TaskType: "echo", ModelName: "m"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	start := time.Now()
	got, err := q.Wait(ctx, id, 200*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("wait blocked too long: %v", elapsed)
	}
	if got == nil || got.Status != domain.StatusQueued {
		t.Errorf("expected queued snapshot at timeout, got %+v", got)
	}
}

func TestWaitReturnsOnTerminal(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Submit(ctx, SubmitParams{TaskType: "echo", ModelName: "m"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		if _, err := q.ClaimNext(ctx, "w1", nil); err != nil {
			t.Errorf("claim: %v", err)
			return
		}
		if _, err := q.Complete(ctx, id, domain.StatusCompleted, json.RawMessage(`{"y":2}`), ""); err != nil {
			t.Errorf("complete: %v", err)
		}
	}()

	got, err := q.Wait(ctx, id, 5*time.Second, 25*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got == nil || got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed task, got %+v", got)
	}
	if string(got.Result) != `{"y":2}` {
		t.Errorf("result = %s", got.Result)
	}
}
