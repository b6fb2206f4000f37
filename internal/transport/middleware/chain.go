// Package middleware implements the transport-agnostic request
// pipeline: recovery, rate limiting, metrics, logging, and auth,
// composed the way the teacher chains gRPC unary interceptors but
// generalized to a plain func(ctx, Request) (Response, error) handler
// shared by both the stdio and HTTP+SSE transports.
package middleware

import (
	"github.com/snapback-dev/mcp-server/internal/transport"
)

// Handler is an alias of transport.Handler so a composed chain can be
// handed back to either transport without a type conversion.
type Handler = transport.Handler

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(next Handler) Handler

// Chain composes middlewares so the first one listed runs outermost —
// mirroring the teacher's recovery-first, audit-last interceptor
// ordering (recovery → rate limit → metrics → logging → validation →
// auth → audit, here: recovery → rate limit → metrics → logging →
// auth).
func Chain(mws ...Middleware) Middleware {
	return func(final Handler) Handler {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
