package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Emit(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBus_DeliversOnFlush(t *testing.T) {
	sink := &captureSink{}
	bus := NewBus(BusConfig{BufferSize: 10, FlushPeriod: 20 * time.Millisecond, BatchSize: 100}, sink)

	bus.Emit(Event{Kind: KindPathViolation, ReasonTag: "traversal"})

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if sink.count() != 1 {
		t.Fatalf("expected 1 delivered event, got %d", sink.count())
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestBus_FlushesOnBatchSize(t *testing.T) {
	sink := &captureSink{}
	bus := NewBus(BusConfig{BufferSize: 100, FlushPeriod: time.Hour, BatchSize: 3}, sink)
	defer bus.Close()

	bus.Emit(Event{Kind: KindToolCall})
	bus.Emit(Event{Kind: KindToolCall})
	bus.Emit(Event{Kind: KindToolCall})

	deadline := time.Now().Add(time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() != 3 {
		t.Fatalf("expected batch of 3 to flush immediately, got %d", sink.count())
	}
}

func TestBus_EmitNeverBlocksWhenFull(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 1, FlushPeriod: time.Hour, BatchSize: 1000})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Emit(Event{Kind: KindToolCall})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked under buffer pressure")
	}
}

func TestBus_CloseFlushesRemaining(t *testing.T) {
	sink := &captureSink{}
	bus := NewBus(BusConfig{BufferSize: 10, FlushPeriod: time.Hour, BatchSize: 1000}, sink)

	bus.Emit(Event{Kind: KindRouterDecision})
	bus.Emit(Event{Kind: KindRouterDecision})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected Close to flush remaining events, got %d", sink.count())
	}
}

func TestTruncateSample(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}

	got := TruncateSample(string(long))
	if len(got) != maxSampleBytes {
		t.Errorf("expected truncation to %d bytes, got %d", maxSampleBytes, len(got))
	}

	short := "short"
	if got := TruncateSample(short); got != short {
		t.Errorf("expected short string unchanged, got %q", got)
	}
}

func TestNewSink_Noop(t *testing.T) {
	sink, err := NewSink("noop", "")
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	if err := sink.Emit(context.Background(), Event{}); err != nil {
		t.Errorf("NoopSink.Emit() error = %v", err)
	}
}

func TestNewSink_File(t *testing.T) {
	path := t.TempDir() + "/telemetry.log"
	sink, err := NewSink("file", path)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	defer sink.Close()

	if err := sink.Emit(context.Background(), Event{Kind: KindToolCall, ToolName: "snapback.analyze_risk"}); err != nil {
		t.Errorf("FileSink.Emit() error = %v", err)
	}
}
