package triage_worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/deskmind/deskmind/internal/background"
	"github.com/deskmind/deskmind/internal/triage"
)

type Worker struct {
	river.WorkerDefaults[background.TriageArgs]

	engine *triage.Engine
}

func New(engine *triage.Engine) *Worker {
	return &Worker{engine: engine}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[background.TriageArgs]) error {
	result, err := w.engine.Process(ctx, job.Args.TicketID)
	if err != nil {
		return err
	}

	if result.Skipped {
		slog.InfoContext(ctx, "triage skipped", "ticket", job.Args.TicketID, "reason", result.SkipReason)
		return nil
	}

	slog.InfoContext(ctx, "triage finished",
		"ticket", job.Args.TicketID,
		"score", result.Score,
		"escalated", result.Escalated,
		"applied", result.Applied,
		"degraded", len(result.Degraded))
	return nil
}

// Triage chains up to two model calls plus a knowledge search.
func (w *Worker) Timeout(job *river.Job[background.TriageArgs]) time.Duration {
	return 5 * time.Minute
}
