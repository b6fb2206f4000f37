package analyzer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// DependencyHygieneDetector applies only to package.json and consults
// the offline vulnerability fixture for known-bad package/version pairs.
type DependencyHygieneDetector struct{}

// NewDependencyHygieneDetector builds the baseline dependency hygiene
// detector.
func NewDependencyHygieneDetector() *DependencyHygieneDetector {
	return &DependencyHygieneDetector{}
}

func (d *DependencyHygieneDetector) Name() string { return "dependency_hygiene" }

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (d *DependencyHygieneDetector) Detect(in Input) Finding {
	if filepath.Base(in.FilePath) != "package.json" {
		return Finding{}
	}

	var pkg packageJSON
	if err := json.Unmarshal([]byte(in.Content), &pkg); err != nil {
		return Finding{}
	}

	var factors []string
	var recs []string
	severity := SeverityLow
	var score float64

	check := func(deps map[string]string) {
		for name, version := range deps {
			rec, ok := lookupVuln(name, version)
			if !ok {
				continue
			}
			sev := severityFromCVSS(rec.CVSS)
			factors = appendUnique(factors, fmt.Sprintf("%s@%s has a known advisory: %s", name, version, rec.Summary))
			recs = appendUnique(recs, fmt.Sprintf("upgrade %s past %s", name, version))
			severity = maxSev(severity, sev)
			score = max2(score, rec.CVSS/10.0)
		}
	}

	check(pkg.Dependencies)
	check(pkg.DevDependencies)

	return Finding{Score: score, Factors: factors, Recommendations: recs, Severity: severity}
}
