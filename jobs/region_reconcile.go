package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gridscape/gridscape/internal/jobs"
	"github.com/gridscape/gridscape/internal/observability"
	"github.com/gridscape/gridscape/internal/reconcile"
)

// NewRegionReconcileHandler wraps one reconciler sweep in an Asynq
// handler. A failed sweep is logged and dropped rather than retried:
// the next scheduled run re-reads everything anyway, and snapshots are
// only advanced after a successful read.
func NewRegionReconcileHandler(rec *reconcile.Reconciler, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	runs := jobmetrics.NewMetrics(metrics.Registerer())
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := runs.Track(TaskRegionReconcile)
		err := tracker.End(rec.Tick(ctx))
		metrics.ObserveReconcileTick(err)
		if err != nil {
			if logger != nil {
				logger.Warn("region reconcile sweep failed", slog.Any("error", err))
			}
			return asynq.SkipRetry
		}
		return nil
	}
}
