package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"
)

// EnvHygieneDetector flags risky-looking assignments in .env files —
// real-looking secret values, debug flags left on, and permissive
// defaults — while leaving .env.example/.env.sample alone.
type EnvHygieneDetector struct{}

// NewEnvHygieneDetector builds the baseline .env hygiene detector.
func NewEnvHygieneDetector() *EnvHygieneDetector {
	return &EnvHygieneDetector{}
}

func (d *EnvHygieneDetector) Name() string { return "env_hygiene" }

var envFilenamePattern = regexp.MustCompile(`^\.env(\..+)?$`)
var envExemptSuffixes = []string{".env.example", ".env.sample"}

var envAllowlist = map[string]bool{
	"NODE_ENV":  true,
	"PORT":      true,
	"HOST":      true,
	"LOG_LEVEL": true,
}

var envAssignment = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

var envVariableRef = regexp.MustCompile(`^\$\{?[A-Za-z_][A-Za-z0-9_]*\}?$`)

var verboseLogLevels = map[string]bool{
	"debug": true, "trace": true, "verbose": true,
}

func (d *EnvHygieneDetector) Detect(in Input) Finding {
	if !d.applies(in.FilePath) {
		return Finding{}
	}

	lines := linesOf(in)

	var factors []string
	var recs []string
	severity := SeverityLow
	var score float64

	for _, n := range sortedLineNumbers(lines) {
		line := lines[n]
		if isCommentOnly(line) || strings.TrimSpace(line) == "" {
			continue
		}

		m := envAssignment.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		key := m[1]
		value := strings.Trim(strings.TrimSpace(m[2]), `"'`)

		switch {
		case strings.EqualFold(key, "DEBUG") && strings.EqualFold(value, "true"):
			factors = appendUnique(factors, "DEBUG enabled in an environment file")
			recs = appendUnique(recs, "disable DEBUG in any environment file that reaches production")
			severity = maxSev(severity, SeverityMedium)
			score = max2(score, 0.5)
		case strings.EqualFold(key, "SSL") && strings.EqualFold(value, "false"):
			factors = appendUnique(factors, "SSL disabled in an environment file")
			recs = appendUnique(recs, "keep SSL enabled outside of local development")
			severity = maxSev(severity, SeverityMedium)
			score = max2(score, 0.5)
		case strings.EqualFold(key, "NODE_ENV") && strings.EqualFold(value, "development"):
			factors = appendUnique(factors, "NODE_ENV set to development in a committed environment file")
			severity = maxSev(severity, SeverityLow)
			score = max2(score, 0.3)
		case key == "LOG_LEVEL" && verboseLogLevels[strings.ToLower(value)]:
			factors = appendUnique(factors, "verbose log level configured in an environment file")
			severity = maxSev(severity, SeverityLow)
			score = max2(score, 0.3)
		case envAllowlist[key]:
			// allowlisted key, no further check
		case value == "" || isPlaceholder(value) || envVariableRef.MatchString(value):
			// empty, placeholder, or a reference to another variable
		default:
			factors = appendUnique(factors, "environment file assigns what looks like a real secret value")
			recs = appendUnique(recs, "keep real credentials out of committed environment files")
			severity = maxSev(severity, SeverityHigh)
			score = max2(score, 0.7)
		}
	}

	return Finding{Score: score, Factors: factors, Recommendations: recs, Severity: severity}
}

func (d *EnvHygieneDetector) applies(path string) bool {
	if path == "" {
		return false
	}
	base := filepath.Base(path)
	for _, suffix := range envExemptSuffixes {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return envFilenamePattern.MatchString(base)
}

func max2(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}
