package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink mirrors telemetry events into a Postgres table so they
// can be queried after the fact, behind the same fire-and-forget
// contract as the other sinks: a failed insert is logged by the caller
// and otherwise swallowed, never propagated back to a producer.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink opens a pool against connString and verifies
// connectivity.
func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("telemetry: failed to ping postgres: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Emit(ctx context.Context, event Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO telemetry_events
			(id, occurred_at, kind, tool_name, session_id, tier, severity, reason_tag, sample, duration_ms, metadata)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID, event.Timestamp, string(event.Kind), event.ToolName, event.SessionID,
		event.Tier, event.Severity, event.ReasonTag, event.Sample, event.DurationMS, metadata,
	)
	return err
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the underlying pool for health checks and migrations.
func (s *PostgresSink) Pool() *pgxpool.Pool {
	return s.pool
}
