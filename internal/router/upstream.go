package router

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"time"

	"github.com/snapback-dev/mcp-server/internal/apperr"
)

// AnalysisResult is the coprocessor's normalized view of a risk analysis,
// whether produced locally or mapped down from an upstream response.
type AnalysisResult struct {
	RiskLevel       string   `json:"riskLevel"` // none|low|medium|high
	Confidence      float64  `json:"confidence"`
	Issues          []Issue  `json:"issues"`
	ExecutionTimeMS int64    `json:"executionTimeMs"`
	UpgradePrompt   bool     `json:"upgradePrompt"`
	Recommendations []string `json:"recommendations"`
}

// Issue is one flagged concern within an AnalysisResult.
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Pattern  string `json:"pattern,omitempty"`
	Line     *int   `json:"line,omitempty"`
}

// upstreamResponse is the declared shape of the upstream analysis API;
// fields absent or out of range make the response non-retryably invalid.
type upstreamResponse struct {
	Risk            string   `json:"risk"`
	Confidence      float64  `json:"confidence"`
	Issues          []Issue  `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

var validUpstreamRisk = map[string]bool{
	"safe": true, "low": true, "medium": true, "high": true, "critical": true,
}

// UpstreamClient composes timeout, retry-with-backoff, and a circuit
// breaker (outermost to innermost) around calls to the external risk
// analysis API, grounded on the pack's resiliency EnhancedClient.
type UpstreamClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	timeout    time.Duration
	breaker    *CircuitBreaker
}

// UpstreamClientConfig configures an UpstreamClient.
type UpstreamClientConfig struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	MaxRetries         int
	CircuitFailures    int
	CircuitSuccesses   int
	CircuitRecovery    time.Duration
}

// NewUpstreamClient builds an UpstreamClient from cfg.
func NewUpstreamClient(cfg UpstreamClientConfig) *UpstreamClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &UpstreamClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		timeout:    timeout,
		breaker:    NewCircuitBreaker("analysis-upstream", cfg.CircuitFailures, cfg.CircuitSuccesses, cfg.CircuitRecovery),
	}
}

// Breaker exposes the underlying circuit breaker for metrics reporting.
func (c *UpstreamClient) Breaker() *CircuitBreaker {
	return c.breaker
}

// Analyze sends code (plus free-form context) to the upstream service and
// maps its response onto AnalysisResult. It never retries a validation
// failure — only transport-level errors and 5xx responses are retried.
// The whole call, every attempt and backoff included, is bounded by one
// total deadline derived from the configured timeout, so a caller never
// waits longer than that regardless of maxRetries.
func (c *UpstreamClient) Analyze(ctx context.Context, code string, userContext map[string]any) (*AnalysisResult, error) {
	if !c.breaker.Allow() {
		return nil, apperr.New(apperr.CodeUnavailable, "circuit breaker is open")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"code":    code,
		"context": userContext,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to encode upstream request")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.doOnce(ctx, body)
		if err == nil {
			c.breaker.Success()
			return resp, nil
		}

		lastErr = err
		if isNonRetryable(err) {
			c.breaker.Failure()
			return nil, err
		}

		if attempt == c.maxRetries {
			break
		}
		if sleepErr := sleepWithBackoff(ctx, attempt); sleepErr != nil {
			c.breaker.Failure()
			return nil, sleepErr
		}
	}

	c.breaker.Failure()
	return nil, lastErr
}

func (c *UpstreamClient) doOnce(ctx context.Context, body []byte) (*AnalysisResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "upstream request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "failed to read upstream response")
	}

	if resp.StatusCode >= 500 {
		return nil, apperr.New(apperr.CodeUnavailable, fmt.Sprintf("upstream returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, &nonRetryableError{apperr.New(apperr.CodeFailedPrecondition, fmt.Sprintf("upstream returned status %d", resp.StatusCode))}
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &nonRetryableError{apperr.Wrap(err, apperr.CodeFailedPrecondition, "upstream response is not valid JSON")}
	}
	if !validUpstreamRisk[parsed.Risk] {
		return nil, &nonRetryableError{apperr.New(apperr.CodeFailedPrecondition, "upstream risk level out of range")}
	}

	return mapUpstreamResponse(parsed), nil
}

// mapUpstreamResponse applies the spec's result mapping: safe|low -> low,
// medium -> medium, high|critical -> high, unknown -> none; clamps
// confidence into [0,1]; preserves issues/recommendations verbatim.
func mapUpstreamResponse(resp upstreamResponse) *AnalysisResult {
	var risk string
	switch resp.Risk {
	case "safe", "low":
		risk = "low"
	case "medium":
		risk = "medium"
	case "high", "critical":
		risk = "high"
	default:
		risk = "none"
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &AnalysisResult{
		RiskLevel:       risk,
		Confidence:      confidence,
		Issues:          resp.Issues,
		UpgradePrompt:   false,
		Recommendations: resp.Recommendations,
	}
}

// nonRetryableError wraps an apperr.Error to signal that the retry loop
// must not attempt the call again, distinguishing it from transient
// network/5xx failures which are retried.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

func isNonRetryable(err error) bool {
	_, ok := err.(*nonRetryableError)
	return ok
}

// sleepWithBackoff waits base*2^attempt plus jitter (crypto/rand sourced,
// 0-50ms), capped at 5s, or returns ctx.Err() if the deadline elapses
// first.
func sleepWithBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
	if backoff > 5*time.Second {
		backoff = 5 * time.Second
	}

	jitter := time.Duration(0)
	if n, err := rand.Int(rand.Reader, big.NewInt(50)); err == nil {
		jitter = time.Duration(n.Int64()) * time.Millisecond
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff + jitter):
		return nil
	}
}
