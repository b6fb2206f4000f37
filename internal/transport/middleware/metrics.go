package middleware

import (
	"context"
	"time"

	"github.com/snapback-dev/mcp-server/internal/metrics"
	"github.com/snapback-dev/mcp-server/internal/transport"
)

// Metrics records per-tool-call duration, count, and in-flight gauge,
// mirroring the teacher's request-tracker-plus-histogram shape.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req transport.Request) transport.Response {
			if m == nil {
				return next(ctx, req)
			}

			m.ToolCallsInFlight.Inc()
			defer m.ToolCallsInFlight.Dec()

			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			status := "ok"
			if resp.Error != nil {
				status = "error"
			}

			principal := transport.PrincipalFrom(ctx)
			m.ToolCallsTotal.WithLabelValues(req.Method, string(principal.Tier), status).Inc()
			m.ToolCallDuration.WithLabelValues(req.Method).Observe(duration.Seconds())

			return resp
		}
	}
}
