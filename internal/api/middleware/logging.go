package middleware

import (
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"windplex/internal/services"
)

const requestIDHeader = "X-Request-ID"

// RequestLog assigns a request id, stamps client information for audit
// entries and logs one line per request at a level derived from the status.
func RequestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)

		ctx := services.WithRequestMeta(c.Request.Context(), services.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"remote_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		}
		if c.Request.URL.RawQuery != "" {
			attrs = append(attrs, "query", c.Request.URL.RawQuery)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		logger.Log(c.Request.Context(), levelForStatus(status), "http request", attrs...)
	}
}

func levelForStatus(code int) slog.Level {
	if code >= 500 {
		return slog.LevelError
	}
	if code >= 400 {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Recover guards handlers against panics and returns a 500 response.
func Recover(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic", "panic", v, "path", c.Request.URL.Path, "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(500, gin.H{"error": "server error", "category": "internal"})
			}
		}()
		c.Next()
	}
}
