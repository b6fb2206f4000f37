package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/transport"
)

func TestChain_OrdersOutermostFirst(t *testing.T) {
	var order []string
	track := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, req transport.Request) transport.Response {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	final := func(ctx context.Context, req transport.Request) transport.Response {
		order = append(order, "handler")
		return transport.NewResult(req.ID, "ok")
	}

	h := Chain(track("a"), track("b"))(final)
	h(context.Background(), transport.Request{})

	want := []string{"a", "b", "handler"}
	if len(order) != len(want) {
		t.Fatalf("unexpected order: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order: %v", order)
		}
	}
}

func TestRecovery_ConvertsPanicToError(t *testing.T) {
	h := Recovery(nil)(func(ctx context.Context, req transport.Request) transport.Response {
		panic("boom")
	})

	resp := h(context.Background(), transport.Request{ID: json.RawMessage(`1`)})
	if resp.Error == nil || resp.Error.Code != transport.CodeInternalError {
		t.Fatalf("expected internal error response, got %+v", resp)
	}
}

func TestAuth_AttachesPrincipal(t *testing.T) {
	resolver := auth.NewResolver(auth.ResolverConfig{DevMode: true})
	defer resolver.Close()

	var seen auth.Result
	h := Auth(resolver, func(ctx context.Context) string { return "" })(func(ctx context.Context, req transport.Request) transport.Response {
		seen = transport.PrincipalFrom(ctx)
		return transport.NewResult(req.ID, "ok")
	})

	h(context.Background(), transport.Request{})
	if !seen.Valid || seen.Tier != auth.TierAdmin {
		t.Fatalf("expected dev-mode admin principal, got %+v", seen)
	}
}

func TestCORS_ReflectsAllowedOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://example.com"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("expected origin to be reflected, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	handler := CORS(CORSConfig{AllowedOrigins: []string{"*"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if called {
		t.Error("expected preflight to short-circuit before the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
