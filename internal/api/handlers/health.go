package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/pkg/database"
)

// HealthCheck 서버 생존 확인
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "debate-arena-backend",
	})
}

// ReadyCheck DB까지 닿는지 확인
func ReadyCheck(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  "database unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
