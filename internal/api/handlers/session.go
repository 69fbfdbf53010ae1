package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// Get 세션 조회
func (h *SessionHandler) Get(c *gin.Context) {
	view, err := h.sessionService.Get(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Join 세션 입장. 두 번째 입장에서 세션이 live가 된다.
func (h *SessionHandler) Join(c *gin.Context) {
	userID := c.GetString("userId")

	view, err := h.sessionService.Join(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Timer 타이머 재동기화
func (h *SessionHandler) Timer(c *gin.Context) {
	timer, err := h.sessionService.Timer(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, timer)
}

type AdvanceRequest struct {
	FromPhase string `json:"fromPhase" binding:"required"`
}

// Advance phase 전이 요청. 경쟁에서 지면 409와 함께 현재 상태를
// 돌려주므로 클라이언트는 그대로 재동기화하면 된다.
func (h *SessionHandler) Advance(c *gin.Context) {
	var req AdvanceRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")
	sessionID := c.Param("id")

	session, err := h.sessionService.Advance(c.Request.Context(), sessionID, userID, models.Phase(req.FromPhase))
	if err != nil {
		if errors.Is(err, service.ErrPhaseChanged) {
			view, getErr := h.sessionService.Get(sessionID)
			if getErr != nil {
				h.writeSessionError(c, getErr)
				return
			}
			c.JSON(http.StatusConflict, gin.H{
				"error":   "Phase already advanced",
				"session": view,
			})
			return
		}
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type SubmitSpeechRequest struct {
	Content string `json:"content" binding:"required"`
}

// SubmitSpeech 발언 제출 (제출과 함께 현재 phase 종료)
func (h *SessionHandler) SubmitSpeech(c *gin.Context) {
	var req SubmitSpeechRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userId")

	speech, err := h.sessionService.SubmitSpeech(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, speech)
}

// Leave 명시적 퇴장 (live 세션은 abandoned)
func (h *SessionHandler) Leave(c *gin.Context) {
	userID := c.GetString("userId")

	if err := h.sessionService.Leave(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left session"})
}

// Transcript 세션 transcript 조회
func (h *SessionHandler) Transcript(c *gin.Context) {
	speeches, err := h.sessionService.Transcript(c.Param("id"))
	if err != nil {
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"speeches": speeches})
}

// Feedback 심판 피드백 조회
func (h *SessionHandler) Feedback(c *gin.Context) {
	data, err := h.sessionService.Feedback(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feedback not available yet"})
			return
		}
		h.writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"feedback": json.RawMessage(data)})
}

func (h *SessionHandler) writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this session"})
	case errors.Is(err, service.ErrSessionNotLive):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not live"})
	case errors.Is(err, service.ErrNotYourTurn):
		c.JSON(http.StatusConflict, gin.H{"error": "Not your turn"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session operation failed"})
	}
}
