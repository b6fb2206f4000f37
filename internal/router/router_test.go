package router

import (
	"context"
	"errors"
	"testing"

	"github.com/snapback-dev/mcp-server/internal/featureflags"
)

type stubLocalAnalyzer struct {
	result *AnalysisResult
	err    error
	calls  int
}

func (s *stubLocalAnalyzer) Analyze(ctx context.Context, code, filePath string, changedLines []int) (*AnalysisResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestRouter_FreeTierAlwaysLocal(t *testing.T) {
	local := &stubLocalAnalyzer{result: &AnalysisResult{RiskLevel: "low"}}
	r := New(local, nil, nil, nil)

	result, err := r.Analyze(context.Background(), "code", UserContext{Tier: "free"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if local.calls != 1 {
		t.Fatalf("expected local analyzer to be called once, got %d", local.calls)
	}
	if !result.UpgradePrompt {
		t.Error("expected upgradePrompt=true for free tier")
	}
	if len(result.Recommendations) == 0 {
		t.Error("expected an upgrade recommendation appended")
	}
}

func TestRouter_NoUpstreamGoesLocal(t *testing.T) {
	local := &stubLocalAnalyzer{result: &AnalysisResult{RiskLevel: "medium"}}
	r := New(local, nil, nil, nil)

	result, err := r.Analyze(context.Background(), "code", UserContext{Tier: "pro"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if local.calls != 1 {
		t.Fatal("expected local analyzer to be called when no upstream configured")
	}
	if result.UpgradePrompt {
		t.Error("expected upgradePrompt=false for pro tier")
	}
}

func TestRouter_MLDetectionExplicitlyFalseSkipsUpstream(t *testing.T) {
	local := &stubLocalAnalyzer{result: &AnalysisResult{RiskLevel: "low"}}
	flags := featureflags.NewStore(map[string]bool{featureflags.MLDetection: false}, nil, 0)

	upstream := NewUpstreamClient(UpstreamClientConfig{BaseURL: "http://upstream.invalid"})
	r := New(local, upstream, flags, nil)

	_, err := r.Analyze(context.Background(), "code", UserContext{Tier: "pro"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if local.calls != 1 {
		t.Fatal("expected local analyzer called directly when ml-detection is explicitly false")
	}
}

func TestRouter_UpstreamFailureFallsBackToLocal(t *testing.T) {
	local := &stubLocalAnalyzer{result: &AnalysisResult{RiskLevel: "high"}}
	upstream := NewUpstreamClient(UpstreamClientConfig{
		BaseURL:    "http://127.0.0.1:1",
		MaxRetries: 0,
	})
	r := New(local, upstream, nil, nil)

	result, err := r.Analyze(context.Background(), "code", UserContext{Tier: "pro"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if local.calls != 1 {
		t.Fatal("expected fallback to local analyzer after upstream failure")
	}
	if result.RiskLevel != "high" {
		t.Errorf("expected local result to pass through, got %q", result.RiskLevel)
	}
}

func TestRouter_LocalAnalyzerErrorPropagates(t *testing.T) {
	local := &stubLocalAnalyzer{err: errors.New("boom")}
	r := New(local, nil, nil, nil)

	_, err := r.Analyze(context.Background(), "code", UserContext{Tier: "pro"})
	if err == nil {
		t.Fatal("expected error to propagate from local analyzer")
	}
}

func TestMapUpstreamResponse_RiskLevels(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"safe", "low"},
		{"low", "low"},
		{"medium", "medium"},
		{"high", "high"},
		{"critical", "high"},
		{"unrecognized", "none"},
	}

	for _, tc := range cases {
		result := mapUpstreamResponse(upstreamResponse{Risk: tc.in, Confidence: 0.5})
		if result.RiskLevel != tc.want {
			t.Errorf("risk %q: expected %q, got %q", tc.in, tc.want, result.RiskLevel)
		}
	}
}

func TestMapUpstreamResponse_ClampsConfidence(t *testing.T) {
	over := mapUpstreamResponse(upstreamResponse{Risk: "low", Confidence: 1.5})
	if over.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", over.Confidence)
	}

	under := mapUpstreamResponse(upstreamResponse{Risk: "low", Confidence: -0.5})
	if under.Confidence != 0 {
		t.Errorf("expected confidence clamped to 0, got %f", under.Confidence)
	}
}
