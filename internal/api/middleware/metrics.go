package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/debate-arena/debate-arena-backend/internal/metrics"
)

// Metrics HTTP 요청 메트릭 수집 미들웨어
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		collector.RecordHTTPRequest(c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
