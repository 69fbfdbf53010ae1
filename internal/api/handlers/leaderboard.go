package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/internal/service"
)

type LeaderboardHandler struct {
	ratingService *service.RatingService
}

func NewLeaderboardHandler(ratingService *service.RatingService) *LeaderboardHandler {
	return &LeaderboardHandler{
		ratingService: ratingService,
	}
}

// GetLeaderboard format별 리더보드 조회
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	format := c.DefaultQuery("format", models.FormatStandard)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	board, err := h.ratingService.Leaderboard(format, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"format":      format,
		"leaderboard": board,
	})
}
