// Package mcpserver dispatches JSON-RPC requests arriving over either
// transport to the tool catalog, gating access by tier, validating
// arguments, and translating every failure into the wire shapes §4.1
// and §6 define — protocol-level JSON-RPC errors for malformed
// requests, and content-array ToolResults (optionally isError) for
// everything a resolved tool call produces.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/docproxy"
	"github.com/snapback-dev/mcp-server/internal/perf"
	"github.com/snapback-dev/mcp-server/internal/registry"
	"github.com/snapback-dev/mcp-server/internal/router"
	"github.com/snapback-dev/mcp-server/internal/sanitizer"
	"github.com/snapback-dev/mcp-server/internal/snapshot"
	"github.com/snapback-dev/mcp-server/internal/telemetry"
	"github.com/snapback-dev/mcp-server/internal/transport"
)

// Config wires a Server's dependencies. Every field is required except
// Logger, which defaults to slog.Default().
type Config struct {
	Registry  *registry.Registry
	Resolver  *auth.Resolver
	Router    *router.Router
	Snapshots *snapshot.Store
	Docs      *docproxy.Proxy
	Sanitizer *sanitizer.Sanitizer
	Perf      *perf.Wrapper
	Telemetry *telemetry.Bus
	Logger    *slog.Logger
}

// Server is the JSON-RPC method dispatcher for the tool catalog.
type Server struct {
	registry  *registry.Registry
	resolver  *auth.Resolver
	router    *router.Router
	snapshots *snapshot.Store
	docs      *docproxy.Proxy
	sanitizer *sanitizer.Sanitizer
	perf      *perf.Wrapper
	telemetry *telemetry.Bus
	logger    *slog.Logger
}

// NewServer builds a Server from cfg.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:  cfg.Registry,
		resolver:  cfg.Resolver,
		router:    cfg.Router,
		snapshots: cfg.Snapshots,
		docs:      cfg.Docs,
		sanitizer: cfg.Sanitizer,
		perf:      cfg.Perf,
		telemetry: cfg.Telemetry,
		logger:    logger,
	}
}

// callToolParams is the params shape for the call_tool JSON-RPC method.
type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Dispatch is the Server's transport.Handler: every JSON-RPC request
// from either transport passes through here once the middleware chain
// has attached a principal to ctx.
func (s *Server) Dispatch(ctx context.Context, req transport.Request) transport.Response {
	switch req.Method {
	case "list_tools":
		return transport.NewResult(req.ID, s.listTools(ctx))
	case "call_tool":
		return s.dispatchCallTool(ctx, req)
	default:
		return transport.NewError(req.ID, transport.CodeMethodNotFound,
			"unknown method "+req.Method, nil)
	}
}

func (s *Server) dispatchCallTool(ctx context.Context, req transport.Request) transport.Response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return transport.NewError(req.ID, transport.CodeInvalidParams, "invalid call_tool params", nil)
	}
	if params.Name == "" {
		return transport.NewError(req.ID, transport.CodeInvalidParams, "call_tool requires a name", nil)
	}

	result := s.callTool(ctx, params.Name, params.Arguments)
	return transport.NewResult(req.ID, result)
}

// callTool resolves, gates, and executes one named tool call, always
// returning a ToolResult — never a protocol-level error, since an
// unresolvable name or a tier refusal are themselves valid outcomes of
// a well-formed request.
func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) ToolResult {
	start := time.Now()
	principal := transport.PrincipalFrom(ctx)

	result, toolErr := s.invoke(ctx, name, args, principal)

	s.emitToolCall(ctx, name, principal, toolErr, time.Since(start))
	return result
}

func (s *Server) invoke(ctx context.Context, name string, args json.RawMessage, principal auth.Result) (ToolResult, error) {
	_, known := s.registry.Resolve(name)
	if !known {
		return errorResult("unknown tool "+name, "not_found", uuid.NewString()), nil
	}

	if !principal.Valid {
		return accessDeniedResult(name), nil
	}

	decision := s.resolver.HasToolAccess(principal, name)
	if !decision.Allowed {
		return upgradeRequiredResult(name), nil
	}

	value, err := s.dispatchTool(ctx, name, args, principal)
	if err != nil {
		msg, code, logID := s.sanitizer.Sanitize(ctx, err)
		return errorResult(msg, code, logID), err
	}
	return jsonResult(value), nil
}

func (s *Server) dispatchTool(ctx context.Context, name string, args json.RawMessage, principal auth.Result) (any, error) {
	switch name {
	case registry.ToolAnalyzeRisk:
		return s.toolAnalyzeRisk(ctx, args, principal)
	case registry.ToolCheckDependencies:
		return s.toolCheckDependencies(ctx, args)
	case registry.ToolCreateSnapshot:
		return s.toolCreateSnapshot(ctx, args)
	case registry.ToolListSnapshots:
		return s.toolListSnapshots(ctx)
	case registry.ToolRestoreSnapshot:
		return s.toolRestoreSnapshot(ctx, args)
	case registry.ToolListTools:
		return s.listTools(ctx), nil
	case registry.ToolResolveLibraryID:
		return s.toolResolveLibraryID(ctx, args)
	case registry.ToolGetLibraryDocs:
		return s.toolGetLibraryDocs(ctx, args)
	default:
		// Reached only for a namespaced external tool the local switch
		// doesn't own; external dispatch belongs to a future registry
		// client call, not yet wired.
		return nil, unknownExternalTool(name)
	}
}

type toolDescriptorView struct {
	Name            string         `json:"name"`
	MinTier         string         `json:"minTier"`
	Description     string         `json:"description"`
	InputSchema     map[string]any `json:"inputSchema"`
	Accessible      bool           `json:"accessible"`
	UpgradeRequired bool           `json:"upgradeRequired"`
}

func (s *Server) listTools(ctx context.Context) map[string]any {
	principal := transport.PrincipalFrom(ctx)
	descriptors := s.registry.List()
	views := make([]toolDescriptorView, 0, len(descriptors))
	for _, d := range descriptors {
		decision := s.resolver.HasToolAccess(principal, d.Name)
		views = append(views, toolDescriptorView{
			Name:            d.Name,
			MinTier:         string(d.MinTier),
			Description:     d.Description,
			InputSchema:     d.InputSchema,
			Accessible:      decision.Allowed,
			UpgradeRequired: decision.UpgradeRequired,
		})
	}
	return map[string]any{"tools": views}
}

func (s *Server) emitToolCall(ctx context.Context, name string, principal auth.Result, toolErr error, duration time.Duration) {
	if s.telemetry == nil {
		return
	}
	severity := "info"
	if toolErr != nil {
		severity = "error"
	}
	s.telemetry.Emit(telemetry.Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Kind:       telemetry.KindToolCall,
		ToolName:   name,
		SessionID:  transport.SessionIDFrom(ctx),
		Tier:       string(principal.Tier),
		Severity:   severity,
		DurationMS: duration.Milliseconds(),
	})
}
