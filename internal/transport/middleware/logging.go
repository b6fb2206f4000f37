package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapback-dev/mcp-server/internal/transport"
)

// Logging logs one line per request at completion, mirroring the
// teacher's duration/code/method logging shape.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req transport.Request) transport.Response {
			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			if resp.Error != nil {
				logger.ErrorContext(ctx, "request failed",
					slog.String("method", req.Method),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.Int("code", resp.Error.Code),
					slog.String("message", resp.Error.Message),
				)
			} else {
				logger.InfoContext(ctx, "request completed",
					slog.String("method", req.Method),
					slog.Int64("duration_ms", duration.Milliseconds()),
				)
			}

			return resp
		}
	}
}
