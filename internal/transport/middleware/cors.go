package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls the Access-Control-* headers the HTTP+SSE
// transport emits.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAgeSeconds  int
}

// defaultAllowedMethods and defaultAllowedHeaders cover the JSON-RPC
// POST surface plus the SSE GET stream.
var defaultAllowedMethods = "GET, POST, OPTIONS"

// CORS wraps an http.Handler with the coprocessor's cross-origin
// policy, generalized from the teacher's ConnectRPC CORS middleware: an
// explicit origin allowlist (never reflecting "*" verbatim when
// credentials are in play), preflight short-circuiting, and an
// Authorization-inclusive header allowlist since browsers never send it
// under a bare wildcard.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowedHeaders := prepareAllowedHeaders()
	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 600
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigin := ""
			for _, o := range cfg.AllowedOrigins {
				if o == "*" {
					allowedOrigin = "*"
					break
				}
				if o == origin {
					allowedOrigin = origin
					break
				}
			}

			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			}
			w.Header().Set("Access-Control-Allow-Methods", defaultAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.Header().Set("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func prepareAllowedHeaders() string {
	return strings.Join([]string{
		"Accept", "Content-Type", "Authorization", "Origin", "X-Requested-With",
	}, ", ")
}
