package middleware

import (
	"context"
	"log/slog"

	"github.com/snapback-dev/mcp-server/internal/transport"
)

// Recovery converts a panic in the handler chain into a JSON-RPC
// internal-error response instead of taking the session down.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req transport.Request) (resp transport.Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "panic recovered in request handler",
						slog.String("method", req.Method),
						slog.Any("panic", r),
					)
					resp = transport.NewError(req.ID, transport.CodeInternalError,
						"internal error", nil)
				}
			}()
			return next(ctx, req)
		}
	}
}
