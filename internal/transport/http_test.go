package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/snapback-dev/mcp-server/internal/session"
)

func newTestHTTPServer(handler Handler) *HTTPServer {
	return NewHTTPServer(HTTPConfig{
		Addr:       "127.0.0.1:0",
		Handler:    handler,
		Sessions:   session.NewRegistry(),
		AppName:    "snapback-mcp",
		AppVersion: "0.1.0-test",
	})
}

func TestHTTPServer_Version(t *testing.T) {
	s := newTestHTTPServer(echoHandler)
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["name"] != "snapback-mcp" {
		t.Fatalf("unexpected version body: %+v", body)
	}
}

func TestHTTPServer_HealthReportsChecks(t *testing.T) {
	s := NewHTTPServer(HTTPConfig{
		Addr:     "127.0.0.1:0",
		Handler:  echoHandler,
		Sessions: session.NewRegistry(),
		HealthChecks: map[string]HealthCheck{
			"cache": func(ctx context.Context) error { return nil },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHTTPServer_SecurityHeadersApplied(t *testing.T) {
	s := newTestHTTPServer(echoHandler)
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("expected X-Frame-Options: DENY, got %q", rec.Header().Get("X-Frame-Options"))
	}
}

func TestHTTPServer_SubmitWithoutSessionRejected(t *testing.T) {
	s := newTestHTTPServer(echoHandler)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing sessionId, got %d", rec.Code)
	}
}

func TestHTTPServer_StreamAndSubmitRoundTrip(t *testing.T) {
	s := newTestHTTPServer(echoHandler)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	streamCtx, cancelStream := context.WithCancel(context.Background())
	defer cancelStream()

	streamReq, _ := http.NewRequestWithContext(streamCtx, http.MethodGet, srv.URL+"/mcp", nil)
	resp, err := http.DefaultClient.Do(streamReq)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	sessionID := readSessionIDFromEndpointEvent(t, reader)

	postResp, err := http.Post(srv.URL+"/mcp?sessionId="+sessionID, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"ping"}`))
	if err != nil {
		t.Fatalf("failed to submit request: %v", err)
	}
	defer postResp.Body.Close()
	if postResp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 accepted, got %d", postResp.StatusCode)
	}

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		done <- result{line, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("failed reading sse data line: %v", r.err)
		}
		if !strings.HasPrefix(r.line, "data: ") {
			t.Fatalf("expected sse data line, got %q", r.line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sse response event")
	}
}

func readSessionIDFromEndpointEvent(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	// First line: "event: endpoint", second: "data: /mcp?sessionId=...".
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("failed reading event line: %v", err)
	}
	dataLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed reading data line: %v", err)
	}
	dataLine = strings.TrimSpace(strings.TrimPrefix(dataLine, "data: "))
	idx := strings.Index(dataLine, "sessionId=")
	if idx == -1 {
		t.Fatalf("endpoint event missing sessionId: %q", dataLine)
	}
	return dataLine[idx+len("sessionId="):]
}
