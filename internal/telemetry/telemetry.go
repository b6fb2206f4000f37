// Package telemetry delivers structured operational events — path
// validation rejections, tool call outcomes, router decisions,
// performance budget breaches, upstream failures — through a
// fire-and-forget buffered channel so producers are never blocked or
// failed by a slow or unavailable sink.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Kind classifies a telemetry Event.
type Kind string

const (
	KindPathViolation    Kind = "path_violation"
	KindToolCall         Kind = "tool_call"
	KindRouterDecision   Kind = "router_decision"
	KindPerfBudgetBreach Kind = "perf_budget_breach"
	KindUpstreamFailure  Kind = "upstream_failure"
)

// Event is one structured telemetry record.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Kind       Kind              `json:"kind"`
	ToolName   string            `json:"toolName,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	Tier       string            `json:"tier,omitempty"`
	Severity   string            `json:"severity,omitempty"`
	ReasonTag  string            `json:"reasonTag,omitempty"`
	Sample     string            `json:"sample,omitempty"`
	DurationMS int64             `json:"durationMs,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// maxSampleBytes bounds the Sample field so a rejected path never leaks
// more than a short prefix into telemetry.
const maxSampleBytes = 100

// TruncateSample truncates s to maxSampleBytes, safe to call with any
// input including one shorter than the limit.
func TruncateSample(s string) string {
	if len(s) <= maxSampleBytes {
		return s
	}
	return s[:maxSampleBytes]
}

// Sink accepts events for storage or forwarding. Implementations must not
// block the caller for long; Emit is called from the Bus's single drain
// goroutine, never from producer goroutines directly.
type Sink interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// BusConfig configures a Bus.
type BusConfig struct {
	BufferSize  int
	FlushPeriod time.Duration
	BatchSize   int
}

// DefaultBusConfig returns sane defaults for an in-process bus.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:  2000,
		FlushPeriod: 5 * time.Second,
		BatchSize:   100,
	}
}

// Bus is the fire-and-forget entry point producers call. Emit never
// blocks: when the internal buffer is full, the event is dropped and a
// drop counter increments rather than the caller stalling.
type Bus struct {
	sinks  []Sink
	buffer chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	dropped int64
}

// NewBus builds a Bus delivering to sinks and starts its background
// drain loop. A Bus with no sinks is valid and simply discards events
// after counting them as delivered.
func NewBus(cfg BusConfig, sinks ...Sink) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 2000
	}
	if cfg.FlushPeriod <= 0 {
		cfg.FlushPeriod = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	b := &Bus{
		sinks:  sinks,
		buffer: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	b.wg.Add(1)
	go b.drainLoop(cfg.FlushPeriod, cfg.BatchSize)

	return b
}

// Emit enqueues event for delivery. It never blocks; a full buffer drops
// the event.
func (b *Bus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Sample = TruncateSample(event.Sample)

	select {
	case b.buffer <- event:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
}

// Dropped returns the number of events discarded because the buffer was
// full at Emit time.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops the drain loop, flushing any buffered events to the sinks
// before returning, then closes every sink.
func (b *Bus) Close() error {
	close(b.done)
	b.wg.Wait()

	var firstErr error
	for _, s := range b.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Bus) drainLoop(flushPeriod time.Duration, batchSize int) {
	defer b.wg.Done()

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	batch := make([]Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		b.deliver(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-b.done:
			for {
				select {
				case e := <-b.buffer:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-b.buffer:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (b *Bus) deliver(batch []Event) {
	ctx := context.Background()
	for _, sink := range b.sinks {
		for _, e := range batch {
			_ = sink.Emit(ctx, e)
		}
	}
}

// MarshalJSON is used by sinks that persist the raw event line.
func (e Event) marshal() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"error":"telemetry event marshal failed"}`)
	}
	return data
}
