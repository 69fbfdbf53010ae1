package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/internal/service"
)

type UserHandler struct {
	userService   *service.UserService
	ratingService *service.RatingService
}

func NewUserHandler(userService *service.UserService, ratingService *service.RatingService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		ratingService: ratingService,
	}
}

type UpdateUserRequest struct {
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

// GetCurrentUser 현재 사용자 정보 조회 (format별 레이팅 포함)
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("userId")

	user, err := h.userService.GetByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user"})
		return
	}

	ratings := make(map[string]*models.RatingRecord)
	for _, format := range []string{models.FormatBlitz, models.FormatStandard, models.FormatExtended} {
		record, err := h.ratingService.GetRating(userID, format)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get ratings"})
			return
		}
		ratings[format] = record
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"email":     user.Email,
			"fullName":  user.FullName,
			"avatarUrl": user.AvatarURL,
			"createdAt": user.CreatedAt,
			"updatedAt": user.UpdatedAt,
		},
		"ratings": ratings,
	})
}

// UpdateCurrentUser 현재 사용자 정보 수정
func (h *UserHandler) UpdateCurrentUser(c *gin.Context) {
	var req UpdateUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")

	var avatarURL *string
	if req.AvatarURL != "" {
		avatarURL = &req.AvatarURL
	}

	if err := h.userService.Update(userID, req.FullName, avatarURL); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully"})
}
