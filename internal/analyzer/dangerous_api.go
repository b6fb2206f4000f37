package analyzer

import "regexp"

// DangerousAPIDetector flags direct or indirect use of dynamic-execution
// and subprocess-spawning primitives.
type DangerousAPIDetector struct {
	patterns []*regexp.Regexp
}

// NewDangerousAPIDetector builds the baseline dangerous-API pattern set.
func NewDangerousAPIDetector() *DangerousAPIDetector {
	return &DangerousAPIDetector{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\beval\s*\(`),
			regexp.MustCompile(`new\s+Function\s*\(`),
			regexp.MustCompile(`child_process\.(exec|spawn|execSync|spawnSync)\s*\(`),
			regexp.MustCompile(`\bos\.(system|popen)\s*\(`),
			regexp.MustCompile(`subprocess\.(call|run|Popen|check_output)\s*\(`),
			regexp.MustCompile(`\bexec\.Command\s*\(`),
			regexp.MustCompile(`vm\.(runInNewContext|runInThisContext)\s*\(`),
		},
	}
}

func (d *DangerousAPIDetector) Name() string { return "dangerous_apis" }

func (d *DangerousAPIDetector) Detect(in Input) Finding {
	lines := linesOf(in)

	var factors []string
	severity := SeverityLow
	var score float64

	for _, n := range sortedLineNumbers(lines) {
		line := lines[n]
		if isCommentOnly(line) {
			continue
		}
		for _, pat := range d.patterns {
			if pat.MatchString(line) {
				factors = appendUnique(factors, "use of a dynamic-execution or subprocess-spawning API")
				severity = maxSev(severity, SeverityHigh)
				score = 0.8
			}
		}
	}

	var recs []string
	if len(factors) > 0 {
		recs = append(recs, "avoid eval/exec-style constructs; prefer explicit, statically analyzable calls")
	}

	return Finding{Score: score, Factors: factors, Recommendations: recs, Severity: severity}
}
