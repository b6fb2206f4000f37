// Package perf wraps named operations with elapsed-time measurement: a
// Debug-level log line on every completion, a Warn when the operation
// exceeds its declared budget, and a Prometheus histogram per
// operation name.
package perf

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snapback-dev/mcp-server/internal/metrics"
)

// Budgets is the operational-threshold table, keyed by operation name.
// Operations with no entry have no budget and never log a Warn.
var Budgets = map[string]time.Duration{
	"auth.authenticate":       50 * time.Millisecond,
	"router.analyze":          3 * time.Second,
	"path.validate":           10 * time.Millisecond,
	"snapshot.create":         500 * time.Millisecond,
	"snapshot.restore":        2 * time.Second,
	"docproxy.resolve":        5 * time.Second,
	"docproxy.docs":           5 * time.Second,
	"telemetry.emit":          5 * time.Millisecond,
}

// Wrapper measures named operations against Budgets and a Prometheus
// histogram.
type Wrapper struct {
	logger    *slog.Logger
	histogram *prometheus.HistogramVec
	breachCtr *prometheus.CounterVec
	tracker   *metrics.RequestTracker
	budgets   map[string]time.Duration
}

// New builds a Wrapper. budgets defaults to the package-level Budgets
// table when nil.
func New(logger *slog.Logger, m *metrics.Metrics, budgets map[string]time.Duration) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	if budgets == nil {
		budgets = Budgets
	}
	w := &Wrapper{logger: logger, budgets: budgets}
	if m != nil {
		w.histogram = m.OperationDuration
		w.breachCtr = m.PerfBudgetBreachTotal
		w.tracker = metrics.NewRequestTracker(m.OperationsInFlight)
	}
	return w
}

// Track runs fn, measuring its elapsed wall-clock time and reporting it
// via log lines, the histogram, budget-breach counters, and an
// in-flight gauge covering the call's full duration.
func (w *Wrapper) Track(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if w.tracker != nil {
		w.tracker.Start(operation)
		defer w.tracker.End(operation)
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	w.record(ctx, operation, elapsed)
	return err
}

func (w *Wrapper) record(ctx context.Context, operation string, elapsed time.Duration) {
	if w.histogram != nil {
		w.histogram.WithLabelValues(operation).Observe(elapsed.Seconds())
	}

	w.logger.DebugContext(ctx, "operation completed",
		slog.String("operation", operation),
		slog.Duration("elapsed", elapsed),
	)

	budget, ok := w.budgets[operation]
	if !ok || elapsed <= budget {
		return
	}

	if w.breachCtr != nil {
		w.breachCtr.WithLabelValues(operation).Inc()
	}
	w.logger.WarnContext(ctx, "operation exceeded performance budget",
		slog.String("operation", operation),
		slog.Duration("elapsed", elapsed),
		slog.Duration("budget", budget),
	)
}
