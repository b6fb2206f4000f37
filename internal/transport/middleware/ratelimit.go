package middleware

import (
	"context"

	"github.com/snapback-dev/mcp-server/internal/ratelimit"
	"github.com/snapback-dev/mcp-server/internal/transport"
)

// KeyFunc extracts a rate-limit key (e.g. session id) from a request's
// context.
type KeyFunc func(ctx context.Context) string

// SessionKey extracts the session id attached to ctx.
func SessionKey(ctx context.Context) string { return transport.SessionIDFrom(ctx) }

// RateLimit rejects requests once keyFunc's key has exhausted its
// budget, returning a JSON-RPC server error rather than panicking or
// silently dropping the request.
func RateLimit(limiter ratelimit.Limiter, keyFunc KeyFunc) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req transport.Request) transport.Response {
			if limiter == nil {
				return next(ctx, req)
			}

			key := keyFunc(ctx)
			allowed, err := limiter.Allow(ctx, key)
			if err != nil || !allowed {
				return transport.NewError(req.ID, transport.CodeServerError, "rate limit exceeded", nil)
			}

			return next(ctx, req)
		}
	}
}
