package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextLogger decorates log entries with identifiers carried in the
// request context (trace id, request id, organization id).
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying whichever context identifiers are
// present. Keys are plain strings, set by the request middleware.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	for _, key := range []string{"trace_id", "request_id", "organization_id"} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(key, v))
		}
	}

	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// LogRequest writes the per-request access log entry.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMS int64) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMS),
	)
}

// LogError writes an error entry with context identifiers attached.
func (cl *ContextLogger) LogError(ctx context.Context, err error, message string, fields ...zap.Field) {
	cl.WithContext(ctx).With(zap.Error(err)).Error(message, fields...)
}
