package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// QueueStore persists learning-queue items. State transitions are enforced in
// SQL so a crash between claim and complete can never move an item backward.
type QueueStore struct {
	pool *pgxpool.Pool
}

func NewQueueStore(pool *pgxpool.Pool) *QueueStore {
	return &QueueStore{pool: pool}
}

const queueColumns = `id, ticket_id, status, processing_attempts, processed_at, error, created_at`

func scanQueueItem(row pgx.Row) (dto.LearningQueueItem, error) {
	var item dto.LearningQueueItem
	err := row.Scan(
		&item.ID, &item.TicketID, &item.Status, &item.ProcessingAttempts,
		&item.ProcessedAt, &item.Error, &item.CreatedAt,
	)
	if err != nil {
		return item, fmt.Errorf("scanning queue item: %w", err)
	}
	return item, nil
}

// Enqueue inserts a pending item for the ticket. A ticket that is already
// pending or processing is not enqueued twice; the bool reports whether a row
// was inserted.
func (s *QueueStore) Enqueue(ctx context.Context, ticketID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO learning_queue (ticket_id, status)
		 VALUES ($1, 'pending')
		 ON CONFLICT (ticket_id) WHERE status IN ('pending', 'processing') DO NOTHING`,
		ticketID,
	)
	if err != nil {
		return false, fmt.Errorf("enqueueing ticket %s: %w", ticketID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimPending atomically marks every pending item processing, bumping its
// attempt counter, and returns the claimed rows.
func (s *QueueStore) ClaimPending(ctx context.Context) ([]dto.LearningQueueItem, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE learning_queue
		 SET status = 'processing', processing_attempts = processing_attempts + 1
		 WHERE status = 'pending'
		 RETURNING `+queueColumns,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming pending items: %w", err)
	}
	defer rows.Close()

	var items []dto.LearningQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating claimed items: %w", err)
	}
	return items, nil
}

// Complete marks the given claimed items completed.
func (s *QueueStore) Complete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE learning_queue
		 SET status = 'completed', processed_at = NOW()
		 WHERE id = ANY($1) AND status = 'processing'`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("completing queue items: %w", err)
	}
	return nil
}

// Fail marks the given claimed items failed with the captured message. Failed
// items do not revert to pending on their own.
func (s *QueueStore) Fail(ctx context.Context, ids []int64, errMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE learning_queue
		 SET status = 'failed', processed_at = NOW(), error = $2
		 WHERE id = ANY($1) AND status = 'processing'`,
		ids, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failing queue items: %w", err)
	}
	return nil
}

// RequeueFailed moves failed items with fewer than maxAttempts attempts back
// to pending, provided they failed at least cooldown ago. Returns the number
// of items re-enqueued.
func (s *QueueStore) RequeueFailed(ctx context.Context, maxAttempts int, cooldown time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE learning_queue
		 SET status = 'pending', error = ''
		 WHERE status = 'failed'
		   AND processing_attempts < $1
		   AND processed_at < NOW() - make_interval(secs => $2)`,
		maxAttempts, cooldown.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Get returns the most recent queue item for a ticket.
func (s *QueueStore) Get(ctx context.Context, ticketID string) (dto.LearningQueueItem, error) {
	return scanQueueItem(s.pool.QueryRow(ctx,
		`SELECT `+queueColumns+`
		 FROM learning_queue
		 WHERE ticket_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		ticketID,
	))
}
