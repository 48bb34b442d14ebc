package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRegionReconcile is the task type for the region access sweep.
	TaskRegionReconcile = "region:reconcile"
)

// NewRegionReconcileTask constructs the sweep task. The sweep carries
// no payload: each run re-reads ledger state fresh.
func NewRegionReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskRegionReconcile, nil)
}

// EnqueueRegionReconcile submits an on-demand sweep.
func (c *Client) EnqueueRegionReconcile(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewRegionReconcileTask(), asynq.Queue(QueueDefault))
}
