package middleware

import (
	"context"
	"time"

	"streamlytics/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestLoggingMiddleware tags each request with a generated request id,
// propagates it through the request context, and logs method, path, status
// and latency once the handler chain completes.
func RequestLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	contextLogger := logger.NewContextLogger(log)

	return func(c *gin.Context) {
		start := time.Now()

		ctx := context.WithValue(c.Request.Context(), "request_id", uuid.NewString())
		if orgID := c.Param("organization_id"); orgID != "" {
			ctx = context.WithValue(ctx, "organization_id", orgID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		contextLogger.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
