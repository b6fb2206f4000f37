package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew_ValidatesAndListsFixedCatalog(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tools := r.List()
	if len(tools) != len(catalog) {
		t.Fatalf("expected %d tools, got %d", len(catalog), len(tools))
	}
}

func TestRegistry_ResolveKnownTool(t *testing.T) {
	r, _ := New(nil)

	tool, ok := r.Resolve(ToolAnalyzeRisk)
	if !ok {
		t.Fatal("expected snapback.analyze_risk to resolve")
	}
	if tool.MinTier != "free" {
		t.Errorf("expected free tier, got %q", tool.MinTier)
	}
}

func TestRegistry_ResolveUnknownTool(t *testing.T) {
	r, _ := New(nil)

	if _, ok := r.Resolve("does.not.exist"); ok {
		t.Fatal("expected unknown tool to not resolve")
	}
}

func TestPermissions_CoversEveryCatalogEntry(t *testing.T) {
	perms := Permissions()
	if len(perms) != len(catalog) {
		t.Fatalf("expected %d permission entries, got %d", len(catalog), len(perms))
	}
}

type stubExternalClient struct {
	ns      string
	tools   []ToolDescriptor
	pingErr error
}

func (s *stubExternalClient) Namespace() string           { return s.ns }
func (s *stubExternalClient) Tools() []ToolDescriptor     { return s.tools }
func (s *stubExternalClient) Ping(ctx context.Context) error { return s.pingErr }

func TestExternalManager_ResolveNamespacedTool(t *testing.T) {
	client := &stubExternalClient{
		ns:    "gh.",
		tools: []ToolDescriptor{{Name: "gh.search_issues"}},
	}
	mgr := NewExternalManager([]ExternalClient{client}, 0)

	tool, ok := mgr.Resolve("gh.search_issues")
	if !ok {
		t.Fatal("expected namespaced tool to resolve")
	}
	if tool.Name != "gh.search_issues" {
		t.Errorf("unexpected tool: %+v", tool)
	}
}

func TestExternalManager_UnhealthyClientExcluded(t *testing.T) {
	client := &stubExternalClient{
		ns:      "gh.",
		tools:   []ToolDescriptor{{Name: "gh.search_issues"}},
		pingErr: errors.New("unreachable"),
	}
	mgr := NewExternalManager([]ExternalClient{client}, 0)

	mgr.RefreshHealth(context.Background())

	if _, ok := mgr.Resolve("gh.search_issues"); ok {
		t.Fatal("expected unhealthy client's tools to be excluded from resolution")
	}
	if len(mgr.List()) != 0 {
		t.Fatal("expected unhealthy client's tools excluded from List")
	}
}

func TestExternalManager_RefreshHealthConcurrent(t *testing.T) {
	clients := []ExternalClient{
		&stubExternalClient{ns: "ctx7.", tools: nil},
		&stubExternalClient{ns: "gh.", tools: nil, pingErr: errors.New("down")},
		&stubExternalClient{ns: "registry.", tools: nil},
	}
	mgr := NewExternalManager(clients, 0)
	mgr.RefreshHealth(context.Background())

	status := mgr.HealthStatus()
	if status["ctx7."] != true || status["registry."] != true {
		t.Fatal("expected reachable clients to be healthy")
	}
	if status["gh."] != false {
		t.Fatal("expected unreachable client to be unhealthy")
	}
}

func TestRegistry_ComposesWithExternalManager(t *testing.T) {
	client := &stubExternalClient{ns: "ctx7.", tools: []ToolDescriptor{{Name: "ctx7.resolve-library-id-v2"}}}
	mgr := NewExternalManager([]ExternalClient{client}, 0)

	r, err := New(mgr)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tools := r.List()
	if len(tools) != len(catalog)+1 {
		t.Fatalf("expected fixed catalog plus 1 external tool, got %d", len(tools))
	}
}

func TestExternalManager_CloseStopsHealthLoop(t *testing.T) {
	mgr := NewExternalManager(nil, 10*time.Millisecond)
	mgr.Close()
	mgr.Close() // safe to call twice
}
