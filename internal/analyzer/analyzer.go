// Package analyzer implements the local, dependency-free risk analysis
// that backs the router's fallback path and the free tier: a fixed,
// ordered sequence of pure detectors whose outputs are merged into a
// single AnalysisResult.
package analyzer

import (
	"context"
	"sort"

	"github.com/snapback-dev/mcp-server/internal/router"
)

// Severity ranks low < medium < high < critical.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "low"
	}
}

// Input is what every detector receives. Metadata is read-only; a
// detector must not hold onto it past the call.
type Input struct {
	Content      string
	FilePath     string
	ChangedLines []int // 1-based, ordered; empty means "scan everything"
}

// Finding is the uniform output of a single detector.
type Finding struct {
	Score           float64
	Factors         []string
	Recommendations []string
	Severity        Severity
}

// Detector is a pure function: same input, same output, no I/O, no
// clock reads. Detectors that don't apply to a given input (wrong file
// type, no matching content) return a zero Finding.
type Detector interface {
	Name() string
	Detect(in Input) Finding
}

// Facade sequences a fixed, ordered set of detectors and merges their
// findings per the max-severity/max-score/deduplicated-strings rule.
type Facade struct {
	detectors []Detector
}

// NewFacade builds a Facade running the baseline detector set in a
// fixed order: secrets, dangerous APIs, env hygiene, dependency hygiene.
func NewFacade(extra ...Detector) *Facade {
	detectors := []Detector{
		NewSecretsDetector(),
		NewDangerousAPIDetector(),
		NewEnvHygieneDetector(),
		NewDependencyHygieneDetector(),
	}
	detectors = append(detectors, extra...)
	return &Facade{detectors: detectors}
}

// Analyze implements router.LocalAnalyzer.
func (f *Facade) Analyze(ctx context.Context, code, filePath string, changedLines []int) (*router.AnalysisResult, error) {
	in := Input{Content: code, FilePath: filePath, ChangedLines: changedLines}

	var (
		maxScore    float64
		maxSeverity Severity
		issues      []router.Issue
		recs        []string
		seenRec     = make(map[string]bool)
	)

	for _, d := range f.detectors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		finding := d.Detect(in)
		if finding.Score > maxScore {
			maxScore = finding.Score
		}
		if finding.Severity > maxSeverity {
			maxSeverity = finding.Severity
		}

		issueType := issueTypeFor(d.Name())
		issueSev := issueSeverity(finding.Severity)
		for _, fac := range finding.Factors {
			issues = append(issues, router.Issue{
				Type:     issueType,
				Severity: issueSev,
				Message:  fac,
			})
		}
		for _, rec := range finding.Recommendations {
			if !seenRec[rec] {
				seenRec[rec] = true
				recs = append(recs, rec)
			}
		}
	}

	return &router.AnalysisResult{
		RiskLevel:       riskLevelFromSeverity(maxSeverity),
		Confidence:      localConfidence,
		Issues:          issues,
		Recommendations: recs,
	}, nil
}

// issueSeverity caps a detector's own severity at "high" for external
// reporting, the same critical-collapses-to-high rule riskLevelFromSeverity
// applies to the overall result.
func issueSeverity(s Severity) string {
	if s == SeverityCritical {
		return SeverityHigh.String()
	}
	return s.String()
}

// issueTypeFor maps a detector's own Name() to the Issue.Type vocabulary
// callers match against (e.g. the seed scenario's "at least one issue of
// type 'secret'"). Detectors without a special-cased name report their
// own name unchanged.
func issueTypeFor(detectorName string) string {
	switch detectorName {
	case "secrets":
		return "secret"
	case "dangerous_apis":
		return "dangerous_api"
	default:
		return detectorName
	}
}

// localConfidence is the fixed confidence assigned to local, rule-based
// analysis; it never competes with an upstream model's calibrated score.
const localConfidence = 0.6

func riskLevelFromSeverity(s Severity) string {
	switch s {
	case SeverityCritical:
		return "high"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// linesOf splits content into lines and, when changedLines is non-empty,
// restricts scanning to just those (1-based) line numbers.
func linesOf(in Input) map[int]string {
	raw := splitLines(in.Content)
	out := make(map[int]string, len(raw))

	restrict := len(in.ChangedLines) > 0
	wanted := make(map[int]bool, len(in.ChangedLines))
	for _, n := range in.ChangedLines {
		wanted[n] = true
	}

	for i, line := range raw {
		n := i + 1
		if restrict && !wanted[n] {
			continue
		}
		out[n] = line
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	lines = append(lines, trimCR(s[start:]))
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

// sortedLineNumbers returns the keys of a line map in ascending order,
// so detectors that need deterministic iteration order can have it.
func sortedLineNumbers(lines map[int]string) []int {
	nums := make([]int, 0, len(lines))
	for n := range lines {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
