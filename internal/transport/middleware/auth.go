package middleware

import (
	"context"

	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/transport"
)

// TokenFunc extracts the raw bearer credential for a request from its
// context (populated earlier by the transport — an Authorization
// header on HTTP, a fixed local token on stdio).
type TokenFunc func(ctx context.Context) string

// Auth resolves the caller's tier and attaches the result to the
// request's context; it never rejects a request outright — tool-level
// access decisions are made by the dispatcher, which has the tool name
// this middleware doesn't.
func Auth(resolver *auth.Resolver, tokenFunc TokenFunc) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req transport.Request) transport.Response {
			result, err := resolver.Authenticate(ctx, tokenFunc(ctx))
			if err != nil {
				result = auth.Result{Valid: false, Tier: auth.TierFree, Error: "authentication service unavailable"}
			}
			ctx = transport.WithPrincipal(ctx, result)
			return next(ctx, req)
		}
	}
}
