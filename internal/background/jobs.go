package background

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// Setup registers recurring jobs: nightly queue mining, hourly queue
// maintenance, and daily ledger retention.
func Setup(riverClient *river.Client[pgx.Tx]) error {
	nightly, err := cron.ParseStandard("0 2 * * *")
	if err != nil {
		return fmt.Errorf("parsing mining schedule: %w", err)
	}
	riverClient.PeriodicJobs().Add(river.NewPeriodicJob(nightly, func() (river.JobArgs, *river.InsertOpts) {
		return MineQueueArgs{}, nil
	}, &river.PeriodicJobOpts{RunOnStart: false}))

	hourly, err := cron.ParseStandard("30 * * * *")
	if err != nil {
		return fmt.Errorf("parsing maintenance schedule: %w", err)
	}
	riverClient.PeriodicJobs().Add(river.NewPeriodicJob(hourly, func() (river.JobArgs, *river.InsertOpts) {
		return QueueMaintenanceArgs{}, nil
	}, &river.PeriodicJobOpts{RunOnStart: false}))

	retention, err := cron.ParseStandard("0 4 * * *")
	if err != nil {
		return fmt.Errorf("parsing retention schedule: %w", err)
	}
	riverClient.PeriodicJobs().Add(river.NewPeriodicJob(retention, func() (river.JobArgs, *river.InsertOpts) {
		return LedgerRetentionArgs{}, nil
	}, &river.PeriodicJobOpts{RunOnStart: false}))

	return nil
}
