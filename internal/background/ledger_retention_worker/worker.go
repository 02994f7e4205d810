package ledger_retention_worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/deskmind/deskmind/internal/background"
)

type Config struct {
	// Retention period for usage ledger rows, in days.
	DefaultRetentionDays int `split_words:"true" default:"30"`
}

type Ledger interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Worker deletes usage ledger rows older than the retention period.
type Worker struct {
	river.WorkerDefaults[background.LedgerRetentionArgs]

	cfg    Config
	ledger Ledger
}

func New(cfg Config, ledger Ledger) *Worker {
	return &Worker{
		cfg:    cfg,
		ledger: ledger,
	}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[background.LedgerRetentionArgs]) error {
	retentionDays := w.cfg.DefaultRetentionDays
	if job.Args.RetentionDays > 0 {
		retentionDays = job.Args.RetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := w.ledger.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning usage ledger: %w", err)
	}

	slog.InfoContext(ctx, "pruned usage ledger", "deleted_rows", deleted, "retention_days", retentionDays)
	return nil
}
