package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PeerTasks/internal/domain"
)

const taskColumns = `task_id, task_type, model_name, payload, status, assigned_worker, created_at, updated_at, result, error`

// Now returns the wall clock as float seconds since epoch, the unit
// persisted in created_at/updated_at.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// InsertTask 向 tasks 表插入一条新的任务记录
func InsertTask(ctx context.Context, conn *sql.DB, t *domain.Task) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO tasks (task_id, task_type, model_name, payload, status, assigned_worker, created_at, updated_at, result, error)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, NULL, NULL)
	`, t.TaskID, t.TaskType, t.ModelName, string(t.Payload), t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTaskByID 根据任务 ID 查询完整的任务信息; returns nil when the row is absent.
func GetTaskByID(ctx context.Context, conn *sql.DB, taskID string) (*domain.Task, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE task_id=?
	`, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ClaimNext atomically moves the oldest queued task of a matching type to
// running and binds it to workerID. The select and the guarded update share
// one immediate transaction, and the row is re-read afterwards; if another
// claimant won the race the result is nil, never a stale task.
func ClaimNext(ctx context.Context, conn *sql.DB, workerID string, taskTypes []string) (*domain.Task, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `SELECT task_id FROM tasks WHERE status=?`
	args := []interface{}{domain.StatusQueued}
	if len(taskTypes) > 0 {
		placeholders := make([]string, len(taskTypes))
		for i, tt := range taskTypes {
			placeholders[i] = "?"
			args = append(args, tt)
		}
		query += fmt.Sprintf(" AND task_type IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY created_at ASC LIMIT 1"

	var taskID string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&taskID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET status=?, assigned_worker=?, updated_at=?
		WHERE task_id=? AND status=?
	`, domain.StatusRunning, workerID, Now(), taskID, domain.StatusQueued)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 提交后再读一次，确认这次认领真的生效
	t, err := GetTaskByID(ctx, conn, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Status != domain.StatusRunning || t.AssignedWorker == nil || *t.AssignedWorker != workerID {
		return nil, nil
	}
	return t, nil
}

// CompleteTask finalizes a task. Ownership is not checked (any caller that
// knows the id may finalize it) but a terminal row is never overwritten.
// Returns true iff the row's status now equals the requested status.
func CompleteTask(ctx context.Context, conn *sql.DB, taskID, status string, result json.RawMessage, errMsg string) (bool, error) {
	var resultVal, errVal interface{}
	if status == domain.StatusCompleted && len(result) > 0 {
		resultVal = string(result)
	}
	if status != domain.StatusCompleted && errMsg != "" {
		errVal = errMsg
	}
	_, err := conn.ExecContext(ctx, `
		UPDATE tasks
		SET status=?, assigned_worker=NULL, result=?, error=?, updated_at=?
		WHERE task_id=? AND status IN (?, ?)
	`, status, resultVal, errVal, Now(), taskID, domain.StatusQueued, domain.StatusRunning)
	if err != nil {
		return false, err
	}

	var current string
	err = conn.QueryRowContext(ctx, `SELECT status FROM tasks WHERE task_id=?`, taskID).Scan(&current)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current == status, nil
}

// ListTasks 按状态/类型过滤任务列表，最新的在前
func ListTasks(ctx context.Context, conn *sql.DB, status, taskType string, limit int) ([]domain.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += " AND status=?"
		args = append(args, status)
	}
	if taskType != "" {
		query += " AND task_type=?"
		args = append(args, taskType)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CountByStatus 统计每个状态下的任务数量
func CountByStatus(ctx context.Context, conn *sql.DB) (map[string]int, error) {
	rows, err := conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var payload string
	var assigned, result, errMsg sql.NullString
	if err := row.Scan(
		&t.TaskID, &t.TaskType, &t.ModelName, &payload, &t.Status, &assigned,
		&t.CreatedAt, &t.UpdatedAt, &result, &errMsg,
	); err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	if assigned.Valid {
		t.AssignedWorker = &assigned.String
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		t.Error = &errMsg.String
	}
	return &t, nil
}
