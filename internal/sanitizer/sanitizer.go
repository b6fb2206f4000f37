// Package sanitizer maps internal errors to public-facing messages,
// keeping full detail in the structured log and only a log id on the
// wire in production.
package sanitizer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/snapback-dev/mcp-server/internal/apperr"
)

const genericMessage = "An internal error occurred. If this persists, contact support and include the reference id below."

// Sanitizer converts errors into what a caller is allowed to see.
type Sanitizer struct {
	development bool
	logger      *slog.Logger
}

// New builds a Sanitizer. development controls whether the original
// error message is surfaced to the caller (true) or replaced with a
// fixed generic sentence (false).
func New(development bool, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{development: development, logger: logger}
}

// Sanitize returns the message and code safe to send to the caller,
// plus a log id correlating it to the full error logged at Error level.
func (s *Sanitizer) Sanitize(ctx context.Context, err error) (publicMessage, code, logID string) {
	logID = uuid.NewString()
	code = string(apperr.CodeOf(err))

	s.logger.ErrorContext(ctx, "request failed",
		slog.String("logId", logID),
		slog.String("code", code),
		slog.Any("error", err),
	)

	if s.development {
		return err.Error(), code, logID
	}

	return genericMessage, code, logID
}
