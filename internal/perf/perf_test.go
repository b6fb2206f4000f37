package perf

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/snapback-dev/mcp-server/internal/metrics"
)

func TestWrapper_Track_ReturnsUnderlyingError(t *testing.T) {
	w := New(slog.Default(), nil, nil)
	sentinel := errors.New("boom")

	err := w.Track(context.Background(), "test.op", func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error to propagate, got %v", err)
	}
}

func TestWrapper_Track_NoBudgetNeverBreaches(t *testing.T) {
	w := New(slog.Default(), nil, map[string]time.Duration{})

	err := w.Track(context.Background(), "unbudgeted.op", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
}

func TestWrapper_Track_RecordsHistogram(t *testing.T) {
	m := metrics.InitMetrics("snapback_perf_test", "wrap")
	w := New(slog.Default(), m, nil)

	err := w.Track(context.Background(), "router.analyze", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
}

func TestWrapper_Track_BreachesBudget(t *testing.T) {
	budgets := map[string]time.Duration{"fast.op": time.Nanosecond}
	w := New(slog.Default(), nil, budgets)

	err := w.Track(context.Background(), "fast.op", func(ctx context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
}
