package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"PeerTasks/internal/repo"
	"PeerTasks/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	svc *service.TaskQueue
}

func NewTaskHandler(svc *service.TaskQueue) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// 请求体：创建任务
type CreateTaskRequest struct {
	TaskID    string          `json:"task_id"`
	TaskType  string          `json:"task_type" binding:"required"`
	ModelName string          `json:"model_name" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
}

// POST /api/v1/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}

	id, err := h.svc.Submit(c.Request.Context(), service.SubmitParams{
		TaskID:    req.TaskID,
		TaskType:  req.TaskType,
		ModelName: req.ModelName,
		Payload:   req.Payload,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create task failed", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task_id": id, "status": "queued"})
}

// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed", "detail": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// GET /api/v1/tasks?status=&type=&limit=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	tasks, err := repo.ListTasks(c.Request.Context(), h.svc.DB(), c.Query("status"), c.Query("type"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}
