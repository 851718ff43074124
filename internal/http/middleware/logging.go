// README: Request logging and HTTP metrics middleware.
package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridedesk/internal/metrics"
)

const headerRequestID = "X-Request-ID"

// Logging logs one line per request and records request count and latency by
// route template.
func Logging(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		code := strconv.Itoa(status)
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, code).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, code).Observe(elapsed.Seconds())

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"request_id", reqID,
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"caller_uid", CallerUID(c),
		)
	}
}
