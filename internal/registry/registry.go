// Package registry holds the fixed tool catalog and composes it with
// tools contributed by namespaced external MCP servers.
package registry

import "github.com/snapback-dev/mcp-server/internal/auth"

// ToolDescriptor describes one invocable tool for protocol discovery and
// the input validator.
type ToolDescriptor struct {
	Name            string
	MinTier         auth.Tier
	RequiresBackend bool
	Description     string
	InputSchema     map[string]any
}

// Local tool names, matching the static catalog.
const (
	ToolAnalyzeRisk       = "snapback.analyze_risk"
	ToolCheckDependencies = "snapback.check_dependencies"
	ToolCreateSnapshot    = "snapback.create_snapshot"
	ToolListSnapshots     = "snapback.list_snapshots"
	ToolRestoreSnapshot   = "snapback.restore_snapshot"
	ToolListTools         = "catalog.list_tools"
	ToolResolveLibraryID  = "ctx7.resolve-library-id"
	ToolGetLibraryDocs    = "ctx7.get-library-docs"
)

// catalog is the fixed set of in-process tools. Validated once at
// startup by New.
var catalog = []ToolDescriptor{
	{
		Name:        ToolAnalyzeRisk,
		MinTier:     auth.TierFree,
		Description: "Analyzes a set of code changes for security and operational risk.",
		InputSchema: map[string]any{
			"changes": map[string]any{"type": "array"},
		},
	},
	{
		Name:        ToolCheckDependencies,
		MinTier:     auth.TierFree,
		Description: "Compares two dependency maps and reports additions, removals, and version changes.",
		InputSchema: map[string]any{
			"before": map[string]any{"type": "object"},
			"after":  map[string]any{"type": "object"},
		},
	},
	{
		Name:        ToolCreateSnapshot,
		MinTier:     auth.TierPro,
		Description: "Creates a content-addressed snapshot of one or more files.",
		InputSchema: map[string]any{
			"filePath": map[string]any{"type": "string"},
			"reason":   map[string]any{"type": "string"},
			"content":  map[string]any{"type": "string"},
			"files":    map[string]any{"type": "array"},
		},
	},
	{
		Name:        ToolListSnapshots,
		MinTier:     auth.TierPro,
		Description: "Lists existing snapshots, most recent first.",
		InputSchema: map[string]any{},
	},
	{
		Name:        ToolRestoreSnapshot,
		MinTier:     auth.TierPro,
		Description: "Restores a snapshot's files to a target path.",
		InputSchema: map[string]any{
			"snapshotId": map[string]any{"type": "string"},
			"targetPath": map[string]any{"type": "string"},
		},
	},
	{
		Name:        ToolListTools,
		MinTier:     auth.TierFree,
		Description: "Lists the tool catalog available to the caller.",
		InputSchema: map[string]any{},
	},
	{
		Name:        ToolResolveLibraryID,
		MinTier:     auth.TierFree,
		Description: "Resolves a library name to a documentation-service-compatible identifier.",
		InputSchema: map[string]any{
			"libraryName": map[string]any{"type": "string"},
		},
	},
	{
		Name:        ToolGetLibraryDocs,
		MinTier:     auth.TierFree,
		Description: "Fetches documentation for a resolved library identifier.",
		InputSchema: map[string]any{
			"context7CompatibleLibraryID": map[string]any{"type": "string"},
			"topic":                       map[string]any{"type": "string"},
			"tokens":                      map[string]any{"type": "integer"},
		},
	},
}

// Permissions returns the auth permission table derived from the fixed
// catalog, used to build an auth.Resolver.
func Permissions() auth.PermissionTable {
	table := make(auth.PermissionTable, len(catalog))
	for _, t := range catalog {
		table[t.Name] = auth.Permission{MinTier: t.MinTier, RequiresBackend: t.RequiresBackend}
	}
	return table
}

// Registry answers tool discovery and resolution, composing the fixed
// local catalog with whatever namespaced external servers are attached.
type Registry struct {
	local    map[string]ToolDescriptor
	order    []string
	external *ExternalManager
}

// New validates the fixed catalog and builds a Registry. external may be
// nil when no external MCP servers are configured.
func New(external *ExternalManager) (*Registry, error) {
	local := make(map[string]ToolDescriptor, len(catalog))
	order := make([]string, 0, len(catalog))

	for _, t := range catalog {
		if err := validateDescriptor(t); err != nil {
			return nil, err
		}
		local[t.Name] = t
		order = append(order, t.Name)
	}

	return &Registry{local: local, order: order, external: external}, nil
}

// List returns every tool the registry can resolve: the fixed catalog
// followed by the external servers' namespaced tools.
func (r *Registry) List() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.local[name])
	}
	if r.external != nil {
		out = append(out, r.external.List()...)
	}
	return out
}

// Resolve looks up name in constant time against the local catalog,
// falling back to a namespaced external server when the name carries a
// recognized prefix (ctx7., gh., registry.).
func (r *Registry) Resolve(name string) (ToolDescriptor, bool) {
	if t, ok := r.local[name]; ok {
		return t, true
	}
	if r.external != nil {
		return r.external.Resolve(name)
	}
	return ToolDescriptor{}, false
}

func validateDescriptor(t ToolDescriptor) error {
	if t.Name == "" {
		return errEmptyToolName
	}
	return nil
}
