package handler

import (
	"database/sql"
	"net/http"

	"PeerTasks/internal/repo"

	"github.com/gin-gonic/gin"
)

type QueueHandler struct {
	db *sql.DB
}

func NewQueueHandler(db *sql.DB) *QueueHandler {
	return &QueueHandler{db: db}
}

// GET /api/v1/queue/stats
func (h *QueueHandler) Stats(c *gin.Context) {
	counts, err := repo.CountByStatus(c.Request.Context(), h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue stats failed", "detail": err.Error()})
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "total": total})
}
