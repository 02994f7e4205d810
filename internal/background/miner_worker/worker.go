package miner_worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/deskmind/deskmind/internal/background"
	"github.com/deskmind/deskmind/internal/miner"
)

type Worker struct {
	river.WorkerDefaults[background.MineQueueArgs]

	miner *miner.Miner
}

func New(m *miner.Miner) *Worker {
	return &Worker{miner: m}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[background.MineQueueArgs]) error {
	stats, err := w.miner.ProcessQueue(ctx)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "queue mining finished",
		"tickets", stats.TicketsProcessed,
		"categories", stats.CategoriesMined,
		"patterns", stats.PatternsFound,
		"articles", stats.ArticlesCreated)
	return nil
}

// Mining walks the whole queue batch by batch, each batch a model call.
func (w *Worker) Timeout(job *river.Job[background.MineQueueArgs]) time.Duration {
	return 15 * time.Minute
}
