package analyzer

import (
	"math"
	"regexp"
	"strings"
)

// SecretsDetector flags high-entropy tokens and provider-specific key
// shapes in source text, skipping obvious placeholders.
type SecretsDetector struct {
	providerPatterns []*regexp.Regexp
}

// NewSecretsDetector builds a SecretsDetector with the baseline
// provider-key patterns (AWS access key ids, JWTs).
func NewSecretsDetector() *SecretsDetector {
	return &SecretsDetector{
		providerPatterns: []*regexp.Regexp{
			regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
			regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		},
	}
}

func (d *SecretsDetector) Name() string { return "secrets" }

// candidateToken matches bare runs of base64url-ish characters at least
// 16 long, the shape a high-entropy secret takes once quoted or
// assigned.
var candidateToken = regexp.MustCompile(`[A-Za-z0-9+/_=.-]{16,}`)

var placeholderTokens = []string{
	"xxxx", "your_key_here", "changeme", "placeholder", "example", "<redacted>",
}

const entropyThreshold = 2.5
const minCandidateLen = 16

func (d *SecretsDetector) Detect(in Input) Finding {
	lines := linesOf(in)

	var factors []string
	var recs []string
	severity := SeverityLow
	var score float64

	for _, n := range sortedLineNumbers(lines) {
		line := lines[n]
		if isCommentOnly(line) {
			continue
		}

		for _, pat := range d.providerPatterns {
			if pat.MatchString(line) {
				factors = appendUnique(factors, "hardcoded credential matching a known provider key format")
				recs = appendUnique(recs, "move secrets to environment variables or a secret manager")
				severity = maxSev(severity, SeverityCritical)
				score = math.Max(score, 0.95)
			}
		}

		for _, tok := range candidateToken.FindAllString(line, -1) {
			if len(tok) < minCandidateLen || isPlaceholder(tok) {
				continue
			}
			if shannonEntropy(tok) >= entropyThreshold {
				factors = appendUnique(factors, "high-entropy string resembling a secret token")
				recs = appendUnique(recs, "verify this value is not a live credential before committing")
				severity = maxSev(severity, SeverityHigh)
				score = math.Max(score, 0.75)
			}
		}
	}

	return Finding{Score: score, Factors: factors, Recommendations: recs, Severity: severity}
}

func isPlaceholder(tok string) bool {
	lower := strings.ToLower(tok)
	for _, p := range placeholderTokens {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// shannonEntropy returns the Shannon entropy of s in bits per character.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	total := float64(len(s))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func maxSev(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}
