package analyzer

// VulnRecord is one advisory entry in the offline vulnerability fixture:
// a package name, the version range it affects (exact-match strings in
// this fixture, not a full semver range parser), and its CVSS score.
type VulnRecord struct {
	Package  string
	Versions map[string]bool
	CVSS     float64
	Summary  string
}

// vulnFixture is a small, hand-maintained offline advisory database.
// It stands in for a real feed (e.g. a periodically refreshed OSV/NVD
// mirror) that this coprocessor has no network access to at analysis
// time; the CVSS-band-to-severity mapping is what matters for the
// detector contract, not the completeness of the data.
var vulnFixture = []VulnRecord{
	{Package: "lodash", Versions: map[string]bool{"4.17.15": true, "4.17.19": true}, CVSS: 7.4, Summary: "prototype pollution"},
	{Package: "minimist", Versions: map[string]bool{"1.2.0": true}, CVSS: 9.8, Summary: "prototype pollution leading to RCE"},
	{Package: "node-fetch", Versions: map[string]bool{"2.6.0": true}, CVSS: 6.1, Summary: "redirect to file: URLs"},
	{Package: "axios", Versions: map[string]bool{"0.21.0": true}, CVSS: 7.5, Summary: "server-side request forgery"},
	{Package: "ansi-regex", Versions: map[string]bool{"3.0.0": true}, CVSS: 5.3, Summary: "regular expression denial of service"},
}

// severityFromCVSS maps a CVSS band to the shared Severity scale:
// >=9.0 critical, >=7.0 high, >=4.0 medium, else low.
func severityFromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// lookupVuln returns the advisory for pkg@version, if any.
func lookupVuln(pkg, version string) (VulnRecord, bool) {
	for _, rec := range vulnFixture {
		if rec.Package == pkg && rec.Versions[version] {
			return rec, true
		}
	}
	return VulnRecord{}, false
}
