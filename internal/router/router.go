package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapback-dev/mcp-server/internal/featureflags"
)

// LocalAnalyzer is the subset of the analyzer facade the router depends
// on, kept narrow so router tests can supply a stub without pulling in
// the full detector pipeline.
type LocalAnalyzer interface {
	Analyze(ctx context.Context, code string, filePath string, changedLines []int) (*AnalysisResult, error)
}

// UserContext carries the caller attributes the decision tree branches
// on, plus whatever free-form data is forwarded to the upstream service.
type UserContext struct {
	Tier    string
	Extra   map[string]any
	CodeMeta
}

// CodeMeta is the subset of request fields the local analyzer needs.
type CodeMeta struct {
	FilePath     string
	ChangedLines []int
}

const upgradeRecommendation = "Upgrade to a paid tier for ML-backed risk analysis with higher accuracy."

// Router implements the §4.6 decision tree: free tier always goes local,
// otherwise upstream is tried (when present and not flagged off) with a
// transparent fallback to local on any upstream failure.
type Router struct {
	local    LocalAnalyzer
	upstream *UpstreamClient
	flags    *featureflags.Store
	logger   *slog.Logger
}

// New builds a Router. upstream and flags may be nil — a nil upstream
// always routes to local, a nil flags treats every flag as unset (not
// explicitly false).
func New(local LocalAnalyzer, upstream *UpstreamClient, flags *featureflags.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{local: local, upstream: upstream, flags: flags, logger: logger}
}

// Analyze runs the decision tree and returns a normalized AnalysisResult.
func (r *Router) Analyze(ctx context.Context, code string, uc UserContext) (*AnalysisResult, error) {
	if uc.Tier == "free" {
		return r.analyzeLocalWithUpgradePrompt(ctx, code, uc)
	}

	if r.upstream != nil && !r.mlDetectionDisabled() {
		result, err := r.upstream.Analyze(ctx, code, uc.Extra)
		if err == nil {
			result.UpgradePrompt = false
			return result, nil
		}

		r.logger.WarnContext(ctx, "upstream analysis failed, falling back to local",
			"error", err, "tier", uc.Tier)
	}

	start := time.Now()
	result, err := r.local.Analyze(ctx, code, uc.FilePath, uc.ChangedLines)
	if err != nil {
		return nil, err
	}
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	result.UpgradePrompt = false
	return result, nil
}

func (r *Router) mlDetectionDisabled() bool {
	if r.flags == nil {
		return false
	}
	return r.flags.Current().IsExplicitlyFalse(featureflags.MLDetection)
}

func (r *Router) analyzeLocalWithUpgradePrompt(ctx context.Context, code string, uc UserContext) (*AnalysisResult, error) {
	start := time.Now()
	result, err := r.local.Analyze(ctx, code, uc.FilePath, uc.ChangedLines)
	if err != nil {
		return nil, err
	}
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	result.UpgradePrompt = true
	result.Recommendations = append(result.Recommendations, upgradeRecommendation)
	return result, nil
}
