package sanitizer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/snapback-dev/mcp-server/internal/apperr"
)

func TestSanitizer_DevelopmentModeExposesMessage(t *testing.T) {
	s := New(true, slog.Default())
	err := apperr.New(apperr.CodeInvalidArgument, "filePath is required")

	msg, code, logID := s.Sanitize(context.Background(), err)
	if msg != "filePath is required" {
		t.Errorf("expected original message in dev mode, got %q", msg)
	}
	if code != string(apperr.CodeInvalidArgument) {
		t.Errorf("unexpected code %q", code)
	}
	if logID == "" {
		t.Error("expected a non-empty log id")
	}
}

func TestSanitizer_ProductionModeHidesMessage(t *testing.T) {
	s := New(false, slog.Default())
	err := apperr.New(apperr.CodeInternal, "pool exhausted: conn refused by 10.0.0.5")

	msg, _, logID := s.Sanitize(context.Background(), err)
	if msg == err.Error() {
		t.Error("expected production mode to hide the original message")
	}
	if logID == "" {
		t.Error("expected a non-empty log id")
	}
}

func TestSanitizer_LogIDsAreUnique(t *testing.T) {
	s := New(false, slog.Default())
	err := apperr.New(apperr.CodeInternal, "boom")

	_, _, first := s.Sanitize(context.Background(), err)
	_, _, second := s.Sanitize(context.Background(), err)
	if first == second {
		t.Error("expected distinct log ids per call")
	}
}
