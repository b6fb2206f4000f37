package analyzer

import "strings"

// lineCommentTokens covers the line-comment syntax of the languages this
// coprocessor is expected to see in a diff: C-family/Go/JS/TS (//), and
// shell/Python/YAML/.env (#).
var lineCommentTokens = []string{"//", "#"}

// isCommentOnly reports whether a line, once leading whitespace is
// stripped, begins with a recognized line-comment token. Detectors use
// this to skip commented-out code rather than flag it as live content.
func isCommentOnly(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, tok := range lineCommentTokens {
		if strings.HasPrefix(trimmed, tok) {
			return true
		}
	}
	return false
}
