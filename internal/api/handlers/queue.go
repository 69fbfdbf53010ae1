package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/internal/metrics"
	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/internal/service"
)

type QueueHandler struct {
	queueService *service.QueueService
	collector    *metrics.Collector
}

func NewQueueHandler(queueService *service.QueueService, collector *metrics.Collector) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
		collector:    collector,
	}
}

type JoinQueueRequest struct {
	Format             string `json:"format" binding:"required"`
	Mode               string `json:"mode" binding:"required"`
	OpponentPreference string `json:"opponentPreference" binding:"required"`
	PauseMode          string `json:"pauseMode"`
}

// Join 대기열 참가. 즉시 매칭되면 세션이 같이 돌아온다.
func (h *QueueHandler) Join(c *gin.Context) {
	var req JoinQueueRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")

	result, err := h.queueService.Join(
		c.Request.Context(),
		userID,
		req.Format,
		models.SessionMode(req.Mode),
		models.OpponentPreference(req.OpponentPreference),
		models.PauseMode(req.PauseMode),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFormat),
			errors.Is(err, service.ErrInvalidMode),
			errors.Is(err, service.ErrInvalidPreference),
			errors.Is(err, service.ErrInvalidPauseMode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join queue"})
		}
		return
	}

	if h.collector != nil {
		h.collector.RecordQueueJoin(req.Format, req.Mode)
		if result.Session != nil {
			h.collector.RecordMatchCreated(result.Session.IsAIOpponent)
		}
	}

	c.JSON(http.StatusCreated, result)
}

// Heartbeat 생존 신고 및 상태 폴링
func (h *QueueHandler) Heartbeat(c *gin.Context) {
	userID := c.GetString("userId")
	entryID := c.Param("id")

	entry, err := h.queueService.Heartbeat(userID, entryID)
	if err != nil {
		h.writeQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Status 대기열 항목 조회
func (h *QueueHandler) Status(c *gin.Context) {
	userID := c.GetString("userId")
	entryID := c.Param("id")

	entry, err := h.queueService.Status(userID, entryID)
	if err != nil {
		h.writeQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Cancel 대기열 취소. 이미 매칭된 항목은 취소할 수 없다.
func (h *QueueHandler) Cancel(c *gin.Context) {
	userID := c.GetString("userId")
	entryID := c.Param("id")

	if err := h.queueService.Cancel(userID, entryID); err != nil {
		if errors.Is(err, service.ErrEntryNotWaiting) {
			c.JSON(http.StatusConflict, gin.H{"error": "Entry is no longer waiting"})
			return
		}
		h.writeQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Queue entry cancelled"})
}

func (h *QueueHandler) writeQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Queue entry not found"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your queue entry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue operation failed"})
	}
}
