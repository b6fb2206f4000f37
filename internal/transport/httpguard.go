package transport

import (
	"net/http"
	"strings"

	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/ratelimit"
)

// exemptFromCredentialCheck lists the paths a liveness probe or the CORS
// preflight hits before a caller ever has a credential to present.
var exemptFromCredentialCheck = map[string]bool{
	"/health":  true,
	"/version": true,
}

// bearerToken extracts the raw credential from Authorization: Bearer or
// X-API-Key, preferring the former when both are present.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// RequireCredential rejects a request with 401 when neither
// Authorization nor X-API-Key is present, unless devMode relaxes the
// gate for local/CLI use. A present credential is both stashed on the
// request context for middleware.Auth's TokenFunc to read again inside
// the JSON-RPC handler chain, and resolved once up front against
// resolver so the SSE stream's session registration (handleMCPStream)
// sees the caller's real tier rather than the zero-value default; the
// resolver's own cache makes the second resolution inside the handler
// chain cheap.
func RequireCredential(resolver *auth.Resolver, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || exemptFromCredentialCheck[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" && !devMode {
				writeJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			ctx := WithRawToken(r.Context(), token)
			if result, err := resolver.Authenticate(ctx, token); err == nil {
				ctx = WithPrincipal(ctx, result)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPRateLimit enforces the transport-wide fixed-window request budget
// per caller IP, separate from the per-tool-call middleware.RateLimit
// inside the JSON-RPC Handler chain: this one guards the whole HTTP
// surface, including the SSE stream itself, before a request ever
// reaches a session.
func IPRateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := ratelimit.IPKeyExtractor(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil || !allowed {
				w.Header().Set("Retry-After", "60")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
