package docproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}
func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "not found" }

func TestProxy_ResolveLibraryID_CachesResult(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode([]LibraryMatch{{ID: "/org/lib", Name: "lib"}})
	}))
	defer srv.Close()

	proxy := New(Config{BaseURL: srv.URL, Cache: newMemCache()})

	first, err := proxy.ResolveLibraryID(context.Background(), "lib")
	if err != nil {
		t.Fatalf("ResolveLibraryID() error = %v", err)
	}
	if len(first) != 1 || first[0].ID != "/org/lib" {
		t.Fatalf("unexpected result: %+v", first)
	}

	second, err := proxy.ResolveLibraryID(context.Background(), "lib")
	if err != nil {
		t.Fatalf("ResolveLibraryID() second call error = %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("unexpected cached result: %+v", second)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 upstream call, got %d", calls)
	}
}

func TestProxy_GetLibraryDocs_AbortsOn404WithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	proxy := New(Config{BaseURL: srv.URL, Cache: newMemCache()})

	_, err := proxy.GetLibraryDocs(context.Background(), "/org/lib", "", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected no retry on 404, got %d calls", calls)
	}
}

func TestProxy_GetLibraryDocs_RetriesOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Docs{LibraryID: "/org/lib", Content: "docs"})
	}))
	defer srv.Close()

	proxy := New(Config{BaseURL: srv.URL, Cache: newMemCache()})

	docs, err := proxy.GetLibraryDocs(context.Background(), "/org/lib", "", 0)
	if err != nil {
		t.Fatalf("GetLibraryDocs() error = %v", err)
	}
	if docs.Content != "docs" {
		t.Errorf("unexpected docs: %+v", docs)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("expected a retry after 5xx, got %d calls", calls)
	}
}
