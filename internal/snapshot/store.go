// Package snapshot implements the content-addressed snapshot store:
// create/list/get/restore over a workspace-local directory, with a
// stable hash for dedup and atomic, path-validated restores.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/snapback-dev/mcp-server/internal/validate"
)

// maxListed caps List() at the most recent snapshots.
const maxListed = 500

// FileMeta records one file's path and content digest within a
// snapshot; the content itself lives in the blob directory keyed by
// digest, not inline in the index.
type FileMeta struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Size   int    `json:"size"`
}

// Snapshot is one recorded create() call's metadata.
type Snapshot struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Reason    string     `json:"reason,omitempty"`
	Files     []FileMeta `json:"files"`
}

// RestoreResult reports what a Restore call actually did.
type RestoreResult struct {
	SnapshotID string   `json:"snapshotId"`
	Written    []string `json:"written,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	MetadataOnly bool   `json:"metadataOnly"`
}

// Store is a single-writer, workspace-local content-addressed snapshot
// store: a JSON index file under a mutex plus a content-addressed blob
// directory. No embedded key/value library appears anywhere in the
// retrieved corpus, so the index is a flat JSON file rather than a
// BoltDB-style store.
type Store struct {
	mu        sync.Mutex
	baseDir   string
	blobDir   string
	indexPath string
	validator *validate.PathValidator
}

// NewStore opens (creating if absent) a snapshot store rooted at
// baseDir, e.g. "./.snapback". requireWorkspace, when true, makes a
// missing baseDir a fatal error instead of creating it — the
// SNAPBACK_REQUIRE_WORKSPACE escape hatch for environments that want to
// fail loudly rather than silently provision state on disk.
func NewStore(baseDir string, validator *validate.PathValidator, requireWorkspace bool) (*Store, error) {
	if _, err := os.Stat(baseDir); err != nil {
		if requireWorkspace {
			return nil, fmt.Errorf("snapshot: workspace directory %s is required but missing: %w", baseDir, err)
		}
	}

	blobDir := filepath.Join(baseDir, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: failed to provision blob directory: %w", err)
	}

	s := &Store{
		baseDir:   baseDir,
		blobDir:   blobDir,
		indexPath: filepath.Join(baseDir, "index.json"),
		validator: validator,
	}
	return s, nil
}

type index struct {
	Snapshots []Snapshot `json:"snapshots"`
}

func (s *Store) loadIndex() (index, error) {
	data, err := os.ReadFile(s.indexPath)
	if os.IsNotExist(err) {
		return index{}, nil
	}
	if err != nil {
		return index{}, fmt.Errorf("snapshot: failed to read index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return index{}, fmt.Errorf("snapshot: failed to parse index: %w", err)
	}
	return idx, nil
}

func (s *Store) saveIndex(idx index) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("snapshot: failed to marshal index: %w", err)
	}
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: failed to write index: %w", err)
	}
	return os.Rename(tmp, s.indexPath)
}

// Create computes the snapshot id by the stable hash; if it already
// exists, the existing record is returned (dedup). Otherwise file
// contents are written to content-addressed blob storage and a new
// record is appended to the index.
func (s *Store) Create(files []File, reason string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := StableHash(files)

	idx, err := s.loadIndex()
	if err != nil {
		return Snapshot{}, err
	}

	for _, existing := range idx.Snapshots {
		if existing.ID == id {
			return existing, nil
		}
	}

	metas := make([]FileMeta, 0, len(files))
	for _, f := range files {
		digest := contentDigest(f.Content)
		if err := s.writeBlob(digest, f.Content); err != nil {
			return Snapshot{}, err
		}
		metas = append(metas, FileMeta{Path: f.Path, Digest: digest, Size: len(f.Content)})
	}

	snap := Snapshot{ID: id, CreatedAt: time.Now(), Reason: reason, Files: metas}
	idx.Snapshots = append(idx.Snapshots, snap)
	if err := s.saveIndex(idx); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

func (s *Store) writeBlob(digest string, content []byte) error {
	path := filepath.Join(s.blobDir, digest)
	if _, err := os.Stat(path); err == nil {
		return nil // already written; digests are content-addressed
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("snapshot: failed to write blob: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) readBlob(digest string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.blobDir, digest))
}

// List returns snapshots in descending timestamp order, capped at 500.
func (s *Store) List() ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	sorted := make([]Snapshot, len(idx.Snapshots))
	copy(sorted, idx.Snapshots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	if len(sorted) > maxListed {
		sorted = sorted[:maxListed]
	}
	return sorted, nil
}

// Get returns the snapshot record for id, if present.
func (s *Store) Get(id string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return Snapshot{}, false, err
	}
	for _, snap := range idx.Snapshots {
		if snap.ID == id {
			return snap, true, nil
		}
	}
	return Snapshot{}, false, nil
}

// Restore writes a snapshot's files back to disk. When targetPath is
// empty the restore is metadata-only. Every destination path is run
// through the path validator against targetPath as root; partial
// failures are reported in Errors and already-written files are not
// rolled back.
func (s *Store) Restore(id, targetPath string) (RestoreResult, error) {
	snap, ok, err := s.Get(id)
	if err != nil {
		return RestoreResult{}, err
	}
	if !ok {
		return RestoreResult{}, fmt.Errorf("snapshot: %s not found", id)
	}

	result := RestoreResult{SnapshotID: id}

	if targetPath == "" {
		result.MetadataOnly = true
		return result, nil
	}

	for _, meta := range snap.Files {
		if err := s.restoreFile(meta, targetPath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", meta.Path, err))
			continue
		}
		result.Written = append(result.Written, meta.Path)
	}

	return result, nil
}

func (s *Store) restoreFile(meta FileMeta, targetPath string) error {
	real, err := s.validator.Validate(meta.Path, targetPath)
	if err != nil {
		return err
	}

	content, err := s.readBlob(meta.Digest)
	if err != nil {
		return fmt.Errorf("blob unreadable: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		return fmt.Errorf("failed to provision parent directory: %w", err)
	}

	tmp := real + ".snapback-tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, real); err != nil {
		return fmt.Errorf("failed to finalize file: %w", err)
	}
	return nil
}
