package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heart-intake-server/internal/metrics"
)

// Metrics records request counts and durations per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.IncActiveConnections()
		defer metrics.DecActiveConnections()

		c.Next()

		// FullPath is the route template, empty for unmatched routes.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}
