package router

import (
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedAllowsCalls(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 2, time.Minute)

	if !cb.Allow() {
		t.Fatal("closed breaker should allow calls")
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 2, time.Minute)

	cb.Failure()
	cb.Failure()
	if cb.State() != CircuitClosed {
		t.Fatal("should still be closed before reaching threshold")
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after 3 consecutive failures, got %s", cb.State())
	}
	if !cb.NextAttemptAt().After(time.Now()) {
		t.Fatal("nextAttemptAt should be in the future")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 2, time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Success()
	cb.Failure()
	cb.Failure()

	if cb.State() != CircuitClosed {
		t.Fatalf("failure count should have reset after Success, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpenBlocksUntilRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 2, 10*time.Millisecond)

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatal("expected open after single failure with threshold 1")
	}
	if cb.Allow() {
		t.Fatal("open breaker should not allow calls before recovery window")
	}

	time.Sleep(15 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("breaker should allow a trial call after recovery window")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half_open after recovery, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 2, 10*time.Millisecond)

	cb.Failure()
	time.Sleep(15 * time.Millisecond)
	cb.Allow()

	cb.Success()
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected still half_open after 1 of 2 successes, got %s", cb.State())
	}

	cb.Success()
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after successThreshold successes, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopensImmediately(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 2, 10*time.Millisecond)

	cb.Failure()
	time.Sleep(15 * time.Millisecond)
	cb.Allow()

	cb.Success()
	cb.Failure()

	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after half_open failure, got %s", cb.State())
	}
}

func TestCircuitBreaker_DefaultsApplied(t *testing.T) {
	cb := NewCircuitBreaker("test", 0, 0, 0)

	if cb.failureThreshold != 5 {
		t.Errorf("expected default failureThreshold 5, got %d", cb.failureThreshold)
	}
	if cb.successThreshold != 2 {
		t.Errorf("expected default successThreshold 2, got %d", cb.successThreshold)
	}
	if cb.recoveryWindow != 30*time.Second {
		t.Errorf("expected default recoveryWindow 30s, got %s", cb.recoveryWindow)
	}
}

func TestCircuitBreaker_Name(t *testing.T) {
	cb := NewCircuitBreaker("analysis-upstream", 5, 2, 30*time.Second)
	if cb.Name() != "analysis-upstream" {
		t.Errorf("expected name 'analysis-upstream', got %q", cb.Name())
	}
}
