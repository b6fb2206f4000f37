// Package validate implements the input size/shape checks every tool
// handler runs before touching its arguments, and the security-critical
// path validator that confines file operations to a workspace root.
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/snapback-dev/mcp-server/internal/telemetry"
)

// PathRejectReason is a coarse, telemetry-safe tag for why a candidate
// path was rejected — never the path itself.
type PathRejectReason string

const (
	ReasonEmpty           PathRejectReason = "empty_or_whitespace"
	ReasonNulByte         PathRejectReason = "nul_byte"
	ReasonEncodedTraversal PathRejectReason = "encoded_traversal"
	ReasonTraversalSegment PathRejectReason = "traversal_segment"
	ReasonWindowsPath     PathRejectReason = "windows_path_form"
	ReasonOutsideRoot     PathRejectReason = "outside_workspace_root"
	ReasonNoParent        PathRejectReason = "parent_missing"
)

// PathError reports a path-validation failure without leaking the
// candidate path into the caller-facing message.
type PathError struct {
	Reason PathRejectReason
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path rejected: %s", e.Reason)
}

// encodedTraversalTokens are checked case-insensitively against the raw,
// un-decoded candidate string.
var encodedTraversalTokens = []string{
	"%2e%2e%2f", "%2e%2e/", "..%2f", "%252e", "%252f", "%2e%2e%5c", "..%5c",
}

// statFunc and lstatEval are indirections so tests can simulate symlink
// resolution and parent-existence without touching the real filesystem.
var statParentExists = func(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

var evalSymlinks = filepath.EvalSymlinks

// PathValidator confines candidate paths to a workspace root, rejecting
// every known traversal technique before the filesystem ever sees the
// path.
type PathValidator struct {
	sink *telemetry.Bus
}

// NewPathValidator builds a PathValidator that reports rejections to sink.
// sink may be nil, in which case rejections are simply not reported.
func NewPathValidator(sink *telemetry.Bus) *PathValidator {
	return &PathValidator{sink: sink}
}

// Validate returns the real absolute path of candidate if and only if it
// resolves, after following all symlinks, to a location inside
// workspaceRoot.
func (v *PathValidator) Validate(candidate, workspaceRoot string) (string, error) {
	reason, err := v.check(candidate, workspaceRoot)
	if err != nil {
		v.report(reason, candidate)
		return "", err
	}

	real, resolveErr := v.resolve(candidate, workspaceRoot)
	if resolveErr != nil {
		v.report(ReasonOutsideRoot, candidate)
		return "", resolveErr
	}

	return real, nil
}

func (v *PathValidator) check(candidate, workspaceRoot string) (PathRejectReason, error) {
	if strings.TrimSpace(candidate) == "" {
		return ReasonEmpty, &PathError{Reason: ReasonEmpty}
	}

	if strings.ContainsRune(candidate, 0) {
		return ReasonNulByte, &PathError{Reason: ReasonNulByte}
	}

	lower := strings.ToLower(candidate)
	for _, token := range encodedTraversalTokens {
		if strings.Contains(lower, token) {
			return ReasonEncodedTraversal, &PathError{Reason: ReasonEncodedTraversal}
		}
	}

	for _, segment := range strings.FieldsFunc(candidate, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return ReasonTraversalSegment, &PathError{Reason: ReasonTraversalSegment}
		}
	}

	if strings.HasPrefix(candidate, `\\`) || hasDriveLetterPrefix(candidate) {
		return ReasonWindowsPath, &PathError{Reason: ReasonWindowsPath}
	}

	joined := filepath.Join(workspaceRoot, candidate)
	parent := filepath.Dir(joined)
	if !statParentExists(parent) {
		return ReasonNoParent, &PathError{Reason: ReasonNoParent}
	}

	return "", nil
}

func (v *PathValidator) resolve(candidate, workspaceRoot string) (string, error) {
	joined := filepath.Join(workspaceRoot, candidate)

	realRoot, err := evalSymlinks(workspaceRoot)
	if err != nil {
		return "", fmt.Errorf("path: failed to resolve workspace root: %w", err)
	}

	realPath := joined
	if resolved, err := evalSymlinks(joined); err == nil {
		realPath = resolved
	} else {
		// Target may not exist yet (e.g. a restore destination); resolve
		// its nearest existing ancestor instead.
		realParent, err := evalSymlinks(filepath.Dir(joined))
		if err != nil {
			return "", fmt.Errorf("path: failed to resolve parent: %w", err)
		}
		realPath = filepath.Join(realParent, filepath.Base(joined))
	}

	realRoot = filepath.Clean(realRoot)
	realPath = filepath.Clean(realPath)

	if realPath != realRoot && !strings.HasPrefix(realPath, realRoot+string(filepath.Separator)) {
		return "", errOutsideRoot
	}

	return realPath, nil
}

var errOutsideRoot = errors.New("path: resolves outside workspace root")

func (v *PathValidator) report(reason PathRejectReason, candidate string) {
	if v.sink == nil {
		return
	}
	v.sink.Emit(telemetry.Event{
		Kind:      telemetry.KindPathViolation,
		ReasonTag: string(reason),
		Sample:    telemetry.TruncateSample(candidate),
		Severity:  "warning",
	})
}

func hasDriveLetterPrefix(s string) bool {
	if len(s) < 2 {
		return false
	}
	c := s[0]
	return ((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) && s[1] == ':'
}
