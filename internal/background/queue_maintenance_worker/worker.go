package queue_maintenance_worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/deskmind/deskmind/internal/background"
	"github.com/deskmind/deskmind/internal/learning"
)

// Limiter is the process-local rate counter this worker keeps from growing
// with every requester ever seen.
type Limiter interface {
	Prune()
}

// Worker re-enqueues cooled-down learning queue failures that still have
// attempts left and prunes idle requesters from the rate-limit map.
type Worker struct {
	river.WorkerDefaults[background.QueueMaintenanceArgs]

	queue   *learning.Queue
	limiter Limiter
}

func New(queue *learning.Queue, limiter Limiter) *Worker {
	return &Worker{queue: queue, limiter: limiter}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[background.QueueMaintenanceArgs]) error {
	w.limiter.Prune()

	requeued, err := w.queue.Maintain(ctx)
	if err != nil {
		return fmt.Errorf("maintaining learning queue: %w", err)
	}

	if requeued > 0 {
		slog.InfoContext(ctx, "learning queue maintenance", "requeued", requeued)
	}
	return nil
}
