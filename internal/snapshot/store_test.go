package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snapback-dev/mcp-server/internal/validate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir, validate.NewPathValidator(nil), false)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	files := []File{{Path: "a.txt", Content: []byte("hello")}}

	snap, err := store.Create(files, "test")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if snap.ID == "" {
		t.Fatal("expected a non-empty snapshot id")
	}

	got, ok, err := store.Get(snap.ID)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if len(got.Files) != 1 || got.Files[0].Path != "a.txt" {
		t.Errorf("unexpected files: %+v", got.Files)
	}
}

func TestStore_CreateDedupesIdenticalInputs(t *testing.T) {
	store := newTestStore(t)
	files := []File{{Path: "a.txt", Content: []byte("same")}}

	first, err := store.Create(files, "first")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := store.Create(files, "second")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.ID != second.ID {
		t.Error("expected identical inputs to dedup to the same snapshot")
	}
	if second.Reason != "first" {
		t.Errorf("expected dedup to return the original record, got reason %q", second.Reason)
	}
}

func TestStore_ListOrdersDescending(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Create([]File{{Path: "a.txt", Content: []byte("1")}}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create([]File{{Path: "b.txt", Content: []byte("2")}}, ""); err != nil {
		t.Fatal(err)
	}

	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if !snaps[0].CreatedAt.After(snaps[1].CreatedAt) && snaps[0].CreatedAt != snaps[1].CreatedAt {
		t.Errorf("expected descending order, got %+v", snaps)
	}
}

func TestStore_RestoreMetadataOnly(t *testing.T) {
	store := newTestStore(t)
	snap, err := store.Create([]File{{Path: "a.txt", Content: []byte("hi")}}, "")
	if err != nil {
		t.Fatal(err)
	}

	result, err := store.Restore(snap.ID, "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !result.MetadataOnly || len(result.Written) != 0 {
		t.Errorf("expected metadata-only restore, got %+v", result)
	}
}

func TestStore_RestoreWritesFiles(t *testing.T) {
	store := newTestStore(t)
	snap, err := store.Create([]File{{Path: "a.txt", Content: []byte("hi")}}, "")
	if err != nil {
		t.Fatal(err)
	}

	target := t.TempDir()
	result, err := store.Restore(snap.ID, target)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(result.Written) != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected restore result: %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "hi" {
		t.Errorf("expected restored content 'hi', got %q", content)
	}
}

func TestStore_RestoreUnknownID(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Restore("nonexistent", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown snapshot id")
	}
}

func TestStableHash_OrderIndependent(t *testing.T) {
	a := []File{{Path: "a.txt", Content: []byte("1")}, {Path: "b.txt", Content: []byte("2")}}
	b := []File{{Path: "b.txt", Content: []byte("2")}, {Path: "a.txt", Content: []byte("1")}}

	if StableHash(a) != StableHash(b) {
		t.Error("expected StableHash to be independent of input order")
	}
}

func TestStableHash_SensitiveToContent(t *testing.T) {
	a := []File{{Path: "a.txt", Content: []byte("1")}}
	b := []File{{Path: "a.txt", Content: []byte("2")}}

	if StableHash(a) == StableHash(b) {
		t.Error("expected different content to produce different hashes")
	}
}
