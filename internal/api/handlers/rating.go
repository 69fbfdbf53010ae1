package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/internal/metrics"
	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/internal/service"
)

type RatingHandler struct {
	ratingService *service.RatingService
	collector     *metrics.Collector
}

func NewRatingHandler(ratingService *service.RatingService, collector *metrics.Collector) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		collector:     collector,
	}
}

type SubmitResultRequest struct {
	Result string `json:"result" binding:"required"`
}

// SubmitResult 결과 선언. 두 제출이 모이면 정산되고, 불일치면
// inconsistent_results 상태로 재제출을 기다린다.
func (h *RatingHandler) SubmitResult(c *gin.Context) {
	var req SubmitResultRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")
	sessionID := c.Param("id")

	outcome, err := h.ratingService.SubmitResult(sessionID, userID, models.Result(req.Result))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid result value"})
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this session"})
		case errors.Is(err, service.ErrDebateNotComplete):
			c.JSON(http.StatusConflict, gin.H{"error": "Debate is not complete"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit result"})
		}
		return
	}

	if h.collector != nil {
		switch outcome.Status {
		case service.OutcomeSettled:
			h.collector.RecordSettlement()
		case service.OutcomeInconsistent:
			h.collector.RecordInconsistentResult()
		}
	}

	c.JSON(http.StatusOK, outcome)
}

// GetSettlement 세션 정산 기록 조회
func (h *RatingHandler) GetSettlement(c *gin.Context) {
	entry, err := h.ratingService.SessionHistory(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not settled"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get settlement"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetMyRating 현재 사용자의 format별 레이팅
func (h *RatingHandler) GetMyRating(c *gin.Context) {
	userID := c.GetString("userId")
	format := c.Param("format")

	record, err := h.ratingService.GetRating(userID, format)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rating"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetMyHistory 현재 사용자의 정산 기록
func (h *RatingHandler) GetMyHistory(c *gin.Context) {
	userID := c.GetString("userId")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.ratingService.History(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}
