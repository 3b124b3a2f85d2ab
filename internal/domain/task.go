package domain

import (
	"encoding/json"
)

// Task statuses. A task starts queued, is claimed into running by exactly one
// worker, and ends in one of the three terminal states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type Task struct {
	TaskID         string          `json:"task_id"`         // 唯一标识符ID
	TaskType       string          `json:"task_type"`       // 处理器类型标签
	ModelName      string          `json:"model_name"`      // 模型名称
	Payload        json.RawMessage `json:"payload"`         // 任务负载
	Status         string          `json:"status"`          // 任务状态
	AssignedWorker *string         `json:"assigned_worker"` // 持有任务的 worker
	CreatedAt      float64         `json:"created_at"`      // 创建时间（秒）
	UpdatedAt      float64         `json:"updated_at"`      // 更新时间（秒）
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *string         `json:"error,omitempty"`
}

// IsTerminal reports whether status is completed, failed or cancelled.
// No transition ever leaves a terminal status.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
