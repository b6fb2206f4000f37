package analyzer

import "sort"

// DependencyChange is one add/remove/version-change observed between
// two dependency maps.
type DependencyChange struct {
	Package    string
	Kind       string // "added", "removed", "changed"
	FromVersion string
	ToVersion   string
	Severity    Severity
	Advisory    string
}

// CompareDependencies reports every add/remove/version-change between
// before and after, bucketing severity by the same CVSS band the
// dependency hygiene detector uses when a known advisory applies to the
// new version.
func CompareDependencies(before, after map[string]string) []DependencyChange {
	var changes []DependencyChange

	for pkg, fromVersion := range before {
		toVersion, stillPresent := after[pkg]
		switch {
		case !stillPresent:
			changes = append(changes, DependencyChange{
				Package: pkg, Kind: "removed", FromVersion: fromVersion,
			})
		case fromVersion != toVersion:
			changes = append(changes, changeRecord(pkg, fromVersion, toVersion))
		}
	}

	for pkg, toVersion := range after {
		if _, existed := before[pkg]; !existed {
			changes = append(changes, addRecord(pkg, toVersion))
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Package < changes[j].Package })
	return changes
}

func changeRecord(pkg, from, to string) DependencyChange {
	c := DependencyChange{Package: pkg, Kind: "changed", FromVersion: from, ToVersion: to, Severity: SeverityLow}
	if rec, ok := lookupVuln(pkg, to); ok {
		c.Severity = severityFromCVSS(rec.CVSS)
		c.Advisory = rec.Summary
	}
	return c
}

func addRecord(pkg, version string) DependencyChange {
	c := DependencyChange{Package: pkg, Kind: "added", ToVersion: version, Severity: SeverityLow}
	if rec, ok := lookupVuln(pkg, version); ok {
		c.Severity = severityFromCVSS(rec.CVSS)
		c.Advisory = rec.Summary
	}
	return c
}
