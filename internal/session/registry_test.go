package session

import (
	"context"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	s, ctx := r.Register(context.Background(), "pro", "user-1", "127.0.0.1:1234")
	if s.ID == "" {
		t.Fatal("expected a non-empty session id")
	}
	if ctx.Err() != nil {
		t.Fatal("expected fresh context to not be canceled")
	}

	got, ok := r.Lookup(s.ID)
	if !ok {
		t.Fatal("expected lookup to find registered session")
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", got.UserID)
	}
}

func TestRegistry_RemoveCancelsContext(t *testing.T) {
	r := NewRegistry()
	s, ctx := r.Register(context.Background(), "free", "user-2", "")

	r.Remove(s.ID)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected context to be canceled after Remove")
	}

	if _, ok := r.Lookup(s.ID); ok {
		t.Fatal("expected session to be gone after Remove")
	}
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Remove("does-not-exist")
}

func TestRegistry_Shutdown(t *testing.T) {
	r := NewRegistry()
	_, ctx1 := r.Register(context.Background(), "pro", "u1", "")
	_, ctx2 := r.Register(context.Background(), "admin", "u2", "")

	r.Shutdown()

	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Fatal("expected Shutdown to cancel every session context")
	}
	if r.Count() != 0 {
		t.Fatalf("expected registry empty after Shutdown, got %d", r.Count())
	}
}

func TestRegistry_Each(t *testing.T) {
	r := NewRegistry()
	r.Register(context.Background(), "pro", "u1", "")
	r.Register(context.Background(), "pro", "u2", "")

	seen := 0
	r.Each(func(s *Session) { seen++ })

	if seen != 2 {
		t.Fatalf("expected Each to visit 2 sessions, got %d", seen)
	}
}
