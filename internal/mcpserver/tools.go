package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/snapback-dev/mcp-server/internal/analyzer"
	"github.com/snapback-dev/mcp-server/internal/apperr"
	"github.com/snapback-dev/mcp-server/internal/auth"
	"github.com/snapback-dev/mcp-server/internal/docproxy"
	"github.com/snapback-dev/mcp-server/internal/router"
	"github.com/snapback-dev/mcp-server/internal/snapshot"
	"github.com/snapback-dev/mcp-server/internal/validate"
)

func toLibraryMatches(found []docproxy.LibraryMatch) []libraryMatch {
	out := make([]libraryMatch, len(found))
	for i, m := range found {
		out[i] = libraryMatch{ID: m.ID, Name: m.Name, Description: m.Description}
	}
	return out
}

func unknownExternalTool(name string) error {
	return apperr.New(apperr.CodeNotFound, "no external client registered for "+name)
}

func decodeArgs(args json.RawMessage, v interface{ Validate() error }) error {
	if err := validate.DecodeStrict(args, v); err != nil {
		return apperr.NewWithField(apperr.CodeInvalidArgument, "arguments", err.Error())
	}
	if err := v.Validate(); err != nil {
		return apperr.NewWithField(apperr.CodeInvalidArgument, "arguments", err.Error())
	}
	return nil
}

func (s *Server) toolAnalyzeRisk(ctx context.Context, raw json.RawMessage, principal auth.Result) (any, error) {
	var args validate.AnalyzeRiskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	code, changedLines := flattenChanges(args.Changes)

	var result *router.AnalysisResult
	err := s.perf.Track(ctx, "router.analyze", func(ctx context.Context) error {
		var innerErr error
		result, innerErr = s.router.Analyze(ctx, code, router.UserContext{
			Tier:     string(principal.Tier),
			CodeMeta: router.CodeMeta{ChangedLines: changedLines},
		})
		return innerErr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "risk analysis failed")
	}

	kept, dropped := validate.TruncateIssues(result.Issues)
	result.Issues = kept
	if dropped > 0 {
		result.Recommendations = append(result.Recommendations,
			"additional issues were truncated for display; re-run with smaller changes to see them all")
	}
	return result, nil
}

// flattenChanges concatenates a diff's change entries into one source
// blob and records which resulting line numbers fall within an added or
// removed hunk, restricting the detector pipeline to the lines the
// caller actually touched.
func flattenChanges(changes []validate.ChangeEntry) (string, []int) {
	var code strings.Builder
	var changedLines []int
	lineNo := 0

	for _, c := range changes {
		touched := c.Added != nil || c.Removed != nil
		for _, ln := range strings.Split(c.Value, "\n") {
			lineNo++
			code.WriteString(ln)
			code.WriteByte('\n')
			if touched {
				changedLines = append(changedLines, lineNo)
			}
		}
	}
	return code.String(), changedLines
}

func (s *Server) toolCheckDependencies(ctx context.Context, raw json.RawMessage) (any, error) {
	var args validate.CheckDependenciesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	changes := analyzer.CompareDependencies(args.Before, args.After)
	return map[string]any{"changes": changes}, nil
}

func (s *Server) toolCreateSnapshot(ctx context.Context, raw json.RawMessage) (any, error) {
	var args validate.CreateSnapshotArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	var files []snapshot.File
	if args.FilePath != "" {
		files = append(files, snapshot.File{Path: args.FilePath, Content: []byte(args.Content)})
	}
	for _, f := range args.Files {
		files = append(files, snapshot.File{Path: f.Path, Content: []byte(f.Content)})
	}
	if len(files) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "create_snapshot requires filePath+content or files")
	}

	var snap snapshot.Snapshot
	err := s.perf.Track(ctx, "snapshot.create", func(ctx context.Context) error {
		var innerErr error
		snap, innerErr = s.snapshots.Create(files, args.Reason)
		return innerErr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "snapshot creation failed")
	}
	return snap, nil
}

func (s *Server) toolListSnapshots(ctx context.Context) (any, error) {
	var snaps []snapshot.Snapshot
	err := s.perf.Track(ctx, "snapshot.list", func(ctx context.Context) error {
		var innerErr error
		snaps, innerErr = s.snapshots.List()
		return innerErr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "listing snapshots failed")
	}
	return map[string]any{"snapshots": snaps}, nil
}

func (s *Server) toolRestoreSnapshot(ctx context.Context, raw json.RawMessage) (any, error) {
	var args validate.RestoreSnapshotArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	if _, ok, err := s.snapshots.Get(args.SnapshotID); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "snapshot lookup failed")
	} else if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "unknown snapshot id")
	}

	var result snapshot.RestoreResult
	err := s.perf.Track(ctx, "snapshot.restore", func(ctx context.Context) error {
		var innerErr error
		result, innerErr = s.snapshots.Restore(args.SnapshotID, args.TargetPath)
		return innerErr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "snapshot restore failed")
	}
	return result, nil
}

func (s *Server) toolResolveLibraryID(ctx context.Context, raw json.RawMessage) (any, error) {
	var args validate.ResolveLibraryIDArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	var matches []libraryMatch
	err := s.perf.Track(ctx, "docproxy.resolve", func(ctx context.Context) error {
		found, innerErr := s.docs.ResolveLibraryID(ctx, args.LibraryName)
		matches = toLibraryMatches(found)
		return innerErr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "documentation lookup failed")
	}
	return map[string]any{"matches": matches}, nil
}

func (s *Server) toolGetLibraryDocs(ctx context.Context, raw json.RawMessage) (any, error) {
	var args validate.GetLibraryDocsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	type docsResult struct {
		LibraryID string `json:"libraryId"`
		Content   string `json:"content"`
	}
	var out docsResult
	err := s.perf.Track(ctx, "docproxy.docs", func(ctx context.Context) error {
		docs, innerErr := s.docs.GetLibraryDocs(ctx, args.Context7CompatibleLibraryID, args.Topic, args.Tokens)
		out = docsResult{LibraryID: docs.LibraryID, Content: docs.Content}
		return innerErr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "documentation fetch failed")
	}
	return out, nil
}

type libraryMatch struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
