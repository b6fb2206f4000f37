package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/snapback-dev/mcp-server/internal/metrics"
	"github.com/snapback-dev/mcp-server/internal/session"
)

// HealthCheck probes one dependency; a non-nil error marks the
// dependency unhealthy in the /health response without taking the
// process down.
type HealthCheck func(ctx context.Context) error

// HTTPConfig configures the HTTP+SSE transport.
type HTTPConfig struct {
	Addr            string
	Handler         Handler
	Sessions        *session.Registry
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	AppName         string
	AppVersion      string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	HealthChecks    map[string]HealthCheck
}

// HTTPServer exposes the JSON-RPC dispatcher over POST /mcp with
// responses delivered asynchronously through a long-lived SSE stream
// opened by GET /mcp, plus the liveness, version, and metrics endpoints.
type HTTPServer struct {
	cfg    HTTPConfig
	server *http.Server
	logger *slog.Logger

	hubMu sync.Mutex
	hub   map[string]chan Response
}

const sseBufferSize = 32

var defaultMaxBodyBytes int64 = 4 << 20 // 4 MiB

// NewHTTPServer builds an HTTPServer; the caller is responsible for
// wrapping cfg.Handler with the CORS middleware separately, since CORS
// in this codebase operates at the net/http layer rather than the
// JSON-RPC Handler layer.
func NewHTTPServer(cfg HTTPConfig) *HTTPServer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &HTTPServer{
		cfg:    cfg,
		logger: cfg.Logger,
		hub:    make(map[string]chan Response),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Mux exposes the underlying net/http handler so callers can wrap it
// with CORS and other net/http-level middleware before serving.
func (s *HTTPServer) Mux() http.Handler {
	return s.server.Handler
}

// SetHandler swaps s.server.Handler, used to install the CORS-wrapped
// handler after construction.
func (s *HTTPServer) SetHandler(h http.Handler) {
	s.server.Handler = h
}

// Run starts the listener and blocks until ctx is canceled or the
// server fails, then drains in-flight connections within the
// configured shutdown timeout, mirroring the teacher's graceful-stop
// sequencing.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting http+sse transport", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if s.cfg.Sessions != nil {
		s.cfg.Sessions.Shutdown()
	}

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("forced http server close", "error", err)
		return s.server.Close()
	}

	s.logger.Info("http+sse transport stopped gracefully")
	return nil
}

func (s *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleMCPStream(w, r)
	case http.MethodPost:
		s.handleMCPSubmit(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

// handleMCPStream opens a long-lived SSE connection: one goroutine per
// connection, torn down when the client disconnects, the session is
// removed, or the server shuts down.
func (s *HTTPServer) handleMCPStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	principal := PrincipalFrom(r.Context())
	var sess *session.Session
	var ctx context.Context
	if s.cfg.Sessions != nil {
		sess, ctx = s.cfg.Sessions.Register(r.Context(), string(principal.Tier), principal.UserID, remoteIP(r))
	} else {
		sess = &session.Session{ID: "local"}
		ctx = r.Context()
	}
	defer func() {
		if s.cfg.Sessions != nil {
			s.cfg.Sessions.Remove(sess.ID)
		}
	}()

	ch := make(chan Response, sseBufferSize)
	s.hubMu.Lock()
	s.hub[sess.ID] = ch
	s.hubMu.Unlock()
	defer func() {
		s.hubMu.Lock()
		delete(s.hub, sess.ID)
		s.hubMu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp?sessionId=%s\n\n", sess.ID)
	flusher.Flush()

	for {
		select {
		case resp := <-ch:
			body, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
			flusher.Flush()
		case <-ctx.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleMCPSubmit accepts one JSON-RPC request, dispatches it through
// the middleware chain, and delivers the response asynchronously to
// the matching SSE stream. The HTTP response to the POST itself only
// acknowledges receipt — handlers never write to the raw stream
// directly.
func (s *HTTPServer) handleMCPSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId query parameter required")
		return
	}

	s.hubMu.Lock()
	ch, ok := s.hub[sessionID]
	s.hubMu.Unlock()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown or closed session")
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch <- NewError(nil, CodeParseError, "invalid JSON-RPC request body", nil)
		writeJSONAccepted(w)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		ch <- NewError(req.ID, CodeInvalidRequest, "not a valid JSON-RPC 2.0 request", nil)
		writeJSONAccepted(w)
		return
	}

	ctx := WithSessionID(r.Context(), sessionID)

	go func() {
		resp := s.cfg.Handler(ctx, req)
		s.hubMu.Lock()
		out, stillOpen := s.hub[sessionID]
		s.hubMu.Unlock()
		if stillOpen {
			select {
			case out <- resp:
			default:
				s.logger.Warn("sse stream backlogged, dropping response", "session_id", sessionID)
			}
		}
	}()

	writeJSONAccepted(w)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.cfg.HealthChecks))
	for name, check := range s.cfg.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"checks": checks,
	})
}

func (s *HTTPServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"name":    s.cfg.AppName,
		"version": s.cfg.AppVersion,
	})
}

// securityHeaders applies the fixed set of defensive headers required
// of the HTTP surface regardless of route.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSONAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
