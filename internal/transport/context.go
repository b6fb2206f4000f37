package transport

import (
	"context"

	"github.com/snapback-dev/mcp-server/internal/auth"
)

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated result for
// this request.
func WithPrincipal(ctx context.Context, result auth.Result) context.Context {
	return context.WithValue(ctx, principalKey{}, result)
}

// PrincipalFrom returns the auth.Result attached to ctx, or an invalid
// free-tier result if none was attached.
func PrincipalFrom(ctx context.Context) auth.Result {
	p, ok := ctx.Value(principalKey{}).(auth.Result)
	if !ok {
		return auth.Result{Tier: auth.TierFree}
	}
	return p
}

type sessionIDKey struct{}

// WithSessionID attaches a session id to ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFrom returns the session id attached to ctx, or "".
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

type rawTokenKey struct{}

// WithRawToken attaches the caller's raw bearer credential to ctx, read
// by middleware.Auth's TokenFunc before the dispatcher resolves a tier.
func WithRawToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, rawTokenKey{}, token)
}

// RawTokenFrom returns the raw bearer credential attached to ctx, or "".
func RawTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(rawTokenKey{}).(string)
	return token
}
