// Package metrics exposes the coprocessor's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics container, covering transport,
// tool routing, cache and snapshot activity.
type Metrics struct {
	ToolCallsTotal     *prometheus.CounterVec
	ToolCallDuration   *prometheus.HistogramVec
	ToolCallsInFlight  prometheus.Gauge

	RouterDecisionsTotal *prometheus.CounterVec
	UpstreamCircuitState *prometheus.GaugeVec
	UpstreamRetries      *prometheus.CounterVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	SnapshotsCreatedTotal  prometheus.Counter
	SnapshotBytesStored    prometheus.Gauge
	PathViolationsTotal    *prometheus.CounterVec
	PerfBudgetBreachTotal  *prometheus.CounterVec
	OperationDuration      *prometheus.HistogramVec
	OperationsInFlight     *prometheus.GaugeVec

	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics registers the metric families under namespace/subsystem and
// installs the result as the package default.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		ToolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tool_calls_total",
				Help:      "Total number of tool invocations",
			},
			[]string{"tool", "tier", "status"},
		),

		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tool_call_duration_seconds",
				Help:      "Duration of tool invocations",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool"},
		),

		ToolCallsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tool_calls_in_flight",
				Help:      "Current number of tool calls being processed",
			},
		),

		RouterDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "router_decisions_total",
				Help:      "Total number of router tier/permission decisions",
			},
			[]string{"tool", "decision"},
		),

		UpstreamCircuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "upstream_circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"upstream"},
		),

		UpstreamRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "upstream_retries_total",
				Help:      "Total number of upstream call retries",
			},
			[]string{"upstream"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),

		SnapshotsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "snapshots_created_total",
				Help:      "Total number of snapshots created",
			},
		),

		SnapshotBytesStored: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "snapshot_bytes_stored",
				Help:      "Total bytes currently stored in the blob directory",
			},
		),

		PathViolationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "path_violations_total",
				Help:      "Total number of rejected path arguments",
			},
			[]string{"reason"},
		),

		PerfBudgetBreachTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "perf_budget_breach_total",
				Help:      "Total number of operations exceeding their performance budget",
			},
			[]string{"operation"},
		),

		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Duration of named internal operations wrapped by internal/perf",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		OperationsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_in_flight",
				Help:      "Current number of internal/perf-wrapped operations in progress, by operation name",
			},
			[]string{"operation"},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service build information",
			},
			[]string{"version", "environment"},
		),
	}

	prometheus.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// Get returns the package-level Metrics, initializing one with default
// naming if InitMetrics has not been called yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("snapback", "")
	}
	return defaultMetrics
}

// RecordToolCall records the outcome and duration of a tool invocation.
func (m *Metrics) RecordToolCall(tool, tier, status string, duration time.Duration) {
	m.ToolCallsTotal.WithLabelValues(tool, tier, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordRouterDecision records a tier/permission routing outcome such as
// "allowed", "upgrade_required" or "unknown_tool".
func (m *Metrics) RecordRouterDecision(tool, decision string) {
	m.RouterDecisionsTotal.WithLabelValues(tool, decision).Inc()
}

// SetCircuitState reflects the current breaker state for an upstream.
func (m *Metrics) SetCircuitState(upstream string, state int) {
	m.UpstreamCircuitState.WithLabelValues(upstream).Set(float64(state))
}

// RecordUpstreamRetry increments the retry counter for an upstream call.
func (m *Metrics) RecordUpstreamRetry(upstream string) {
	m.UpstreamRetries.WithLabelValues(upstream).Inc()
}

// RecordCacheHit/RecordCacheMiss record cache lookups by cache name (e.g.
// "auth", "docs").
func (m *Metrics) RecordCacheHit(cache string)  { m.CacheHitsTotal.WithLabelValues(cache).Inc() }
func (m *Metrics) RecordCacheMiss(cache string) { m.CacheMissesTotal.WithLabelValues(cache).Inc() }

// RecordSnapshotCreated records a successful snapshot creation and updates
// the stored-bytes gauge to newTotal.
func (m *Metrics) RecordSnapshotCreated(newTotal int64) {
	m.SnapshotsCreatedTotal.Inc()
	m.SnapshotBytesStored.Set(float64(newTotal))
}

// RecordPathViolation records a rejected path argument by reason code.
func (m *Metrics) RecordPathViolation(reason string) {
	m.PathViolationsTotal.WithLabelValues(reason).Inc()
}

// RecordPerfBudgetBreach records an operation that exceeded its budget.
func (m *Metrics) RecordPerfBudgetBreach(operation string) {
	m.PerfBudgetBreachTotal.WithLabelValues(operation).Inc()
}

// SetServiceInfo publishes build metadata as a constant gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
