package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists events into audit_events. It is the default Emitter
// wired in production; failures are logged and never surfaced to the
// component that emitted.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRecorder returns a Recorder backed by the provided pool.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger}
}

// Emit implements Emitter.
func (r *Recorder) Emit(ctx context.Context, event Event) {
	if r == nil || r.pool == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	metaJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		r.warn("marshal audit metadata", err)
		metaJSON = []byte(`{}`)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_events (actor_id, action, target, severity, success, metadata, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.Actor, event.Action, event.Target, string(event.Severity), event.Success, metaJSON, event.Timestamp)
	if err != nil {
		r.warn("insert audit event", err)
	}
}

func (r *Recorder) warn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, slog.Any("error", err))
	}
}
