package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/docproxy"
	"github.com/snapback-dev/mcp-server/internal/perf"
	"github.com/snapback-dev/mcp-server/internal/registry"
	"github.com/snapback-dev/mcp-server/internal/router"
	"github.com/snapback-dev/mcp-server/internal/sanitizer"
	"github.com/snapback-dev/mcp-server/internal/snapshot"
	"github.com/snapback-dev/mcp-server/internal/transport"
	"github.com/snapback-dev/mcp-server/internal/validate"
)

type stubLocalAnalyzer struct{}

func (stubLocalAnalyzer) Analyze(ctx context.Context, code, filePath string, changedLines []int) (*router.AnalysisResult, error) {
	return &router.AnalysisResult{RiskLevel: "low", Confidence: 0.6}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg, err := registry.New(nil)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	resolver := auth.NewResolver(auth.ResolverConfig{
		Permissions: registry.Permissions(),
		DevMode:     false,
	})
	t.Cleanup(func() { resolver.Close() })

	r := router.New(stubLocalAnalyzer{}, nil, nil, nil)

	workspace := t.TempDir()
	validator := validate.NewPathValidator(nil)
	store, err := snapshot.NewStore(workspace, validator, false)
	if err != nil {
		t.Fatalf("failed to build snapshot store: %v", err)
	}

	docs := docproxy.New(docproxy.Config{BaseURL: "http://example.invalid"})

	return NewServer(Config{
		Registry:  reg,
		Resolver:  resolver,
		Router:    r,
		Snapshots: store,
		Docs:      docs,
		Sanitizer: sanitizer.New(true, slog.Default()),
		Perf:      perf.New(nil, nil, nil),
	})
}

func callTool(t *testing.T, s *Server, ctx context.Context, name string, args any) ToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal args: %v", err)
	}
	params, err := json.Marshal(callToolParams{Name: name, Arguments: raw})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.Dispatch(ctx, transport.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "call_tool",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}

	body, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}
	var result ToolResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	return result
}

func freeCtx() context.Context {
	return transport.WithPrincipal(context.Background(), auth.Result{Valid: true, Tier: auth.TierFree, UserID: "u1"})
}

func proCtx() context.Context {
	return transport.WithPrincipal(context.Background(), auth.Result{Valid: true, Tier: auth.TierPro, UserID: "u1"})
}

func unauthenticatedCtx() context.Context {
	return transport.WithPrincipal(context.Background(), auth.Result{Valid: false})
}

func TestDispatch_ListToolsReturnsCatalog(t *testing.T) {
	s := newTestServer(t)
	resp := s.Dispatch(freeCtx(), transport.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "list_tools"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := s.Dispatch(freeCtx(), transport.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "bogus"})
	if resp.Error == nil || resp.Error.Code != transport.CodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}
}

func TestCallTool_AnalyzeRiskFreeTier(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, freeCtx(), registry.ToolAnalyzeRisk, map[string]any{
		"changes": []map[string]any{
			{"value": "const x = 1"},
		},
	})
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
}

func TestCallTool_CreateSnapshotRequiresProTier(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, freeCtx(), registry.ToolCreateSnapshot, map[string]any{
		"filePath": "a.txt",
		"content":  "hello",
	})
	if result.IsError {
		t.Fatalf("expected an upgrade-prompt success result, got error: %+v", result)
	}
	found := false
	for _, c := range result.Content {
		if c.Type == "json" {
			if m, ok := c.JSON.(map[string]any); ok {
				if v, ok := m["upgradeRequired"].(bool); ok && v {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected upgradeRequired marker in content, got %+v", result.Content)
	}
}

func TestCallTool_UnauthenticatedCallerIsDeniedNotErrored(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, unauthenticatedCtx(), registry.ToolAnalyzeRisk, map[string]any{
		"changes": []map[string]any{{"value": "const x = 1"}},
	})
	if result.IsError {
		t.Fatalf("expected a refusal, not an error result: %+v", result)
	}
	found := false
	for _, c := range result.Content {
		if c.Type == "json" {
			if m, ok := c.JSON.(map[string]any); ok {
				if v, ok := m["accessDenied"].(bool); ok && v {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected accessDenied marker in content, got %+v", result.Content)
	}
}

func TestCallTool_CreateAndRestoreSnapshotProTier(t *testing.T) {
	s := newTestServer(t)
	ctx := proCtx()

	target := t.TempDir()

	created := callTool(t, s, ctx, registry.ToolCreateSnapshot, map[string]any{
		"filePath": "a.txt",
		"content":  "hello world",
		"reason":   "test",
	})
	if created.IsError {
		t.Fatalf("expected snapshot creation to succeed, got %+v", created)
	}

	snapJSON, _ := json.Marshal(created.Content[0].JSON)
	var snap struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(snapJSON, &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.ID == "" {
		t.Fatal("expected a non-empty snapshot id")
	}

	restored := callTool(t, s, ctx, registry.ToolRestoreSnapshot, map[string]any{
		"snapshotId": snap.ID,
		"targetPath": target,
	})
	if restored.IsError {
		t.Fatalf("expected restore to succeed, got %+v", restored)
	}
}

func TestCallTool_RestoreUnknownSnapshotIsError(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, proCtx(), registry.ToolRestoreSnapshot, map[string]any{
		"snapshotId": "does-not-exist",
	})
	if !result.IsError {
		t.Fatalf("expected error result for unknown snapshot id, got %+v", result)
	}
}

func TestCallTool_UnknownToolNameIsError(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, freeCtx(), "no.such.tool", map[string]any{})
	if !result.IsError {
		t.Fatalf("expected error result for unknown tool, got %+v", result)
	}
}

func TestCallTool_CheckDependencies(t *testing.T) {
	s := newTestServer(t)
	result := callTool(t, s, freeCtx(), registry.ToolCheckDependencies, map[string]any{
		"before": map[string]string{"lodash": "4.17.15"},
		"after":  map[string]string{"lodash": "4.17.19"},
	})
	if result.IsError {
		t.Fatalf("expected success, got %+v", result)
	}
}
