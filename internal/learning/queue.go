// Package learning tracks which resolved tickets are awaiting pattern
// mining. Items move pending -> processing -> {completed, failed}; failed is
// terminal for the miner. A maintenance pass re-enqueues failures below the
// attempt cap, after which recovery is operator-only.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// MaxAttempts bounds automatic re-processing of failed items.
const MaxAttempts = 3

// RequeueCooldown is the minimum age of a failure before maintenance may
// re-enqueue it.
const RequeueCooldown = time.Hour

// Store is the durable queue surface. Transitions are enforced by the store
// so concurrent writers cannot move an item backward.
type Store interface {
	Enqueue(ctx context.Context, ticketID string) (bool, error)
	ClaimPending(ctx context.Context) ([]dto.LearningQueueItem, error)
	Complete(ctx context.Context, ids []int64) error
	Fail(ctx context.Context, ids []int64, errMsg string) error
	RequeueFailed(ctx context.Context, maxAttempts int, cooldown time.Duration) (int64, error)
}

type Queue struct {
	store Store
}

func New(store Store) *Queue {
	return &Queue{store: store}
}

// Enqueue registers a resolved ticket for mining. Enqueueing a ticket that is
// already pending or processing is a no-op.
func (q *Queue) Enqueue(ctx context.Context, ticketID string) error {
	if ticketID == "" {
		return fmt.Errorf("enqueue: empty ticket id")
	}

	inserted, err := q.store.Enqueue(ctx, ticketID)
	if err != nil {
		return err
	}
	if !inserted {
		slog.DebugContext(ctx, "ticket already queued for mining", "ticket", ticketID)
	}
	return nil
}

// ClaimPending takes every pending item for this process, marking each
// processing and bumping its attempt counter. Single claimant assumed: there
// is no distributed lock, so exactly one miner must run per deployment.
func (q *Queue) ClaimPending(ctx context.Context) ([]dto.LearningQueueItem, error) {
	items, err := q.store.ClaimPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		slog.InfoContext(ctx, "claimed learning queue items", "count", len(items))
	}
	return items, nil
}

// Complete marks a claimed batch done.
func (q *Queue) Complete(ctx context.Context, items []dto.LearningQueueItem) error {
	return q.store.Complete(ctx, itemIDs(items))
}

// Fail marks a claimed batch failed with the captured message. There is no
// automatic retry here; see Maintain.
func (q *Queue) Fail(ctx context.Context, items []dto.LearningQueueItem, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return q.store.Fail(ctx, itemIDs(items), msg)
}

// Maintain re-enqueues failed items that have attempts left and have cooled
// down. Items at the attempt cap stay failed until an operator intervenes.
func (q *Queue) Maintain(ctx context.Context) (int64, error) {
	requeued, err := q.store.RequeueFailed(ctx, MaxAttempts, RequeueCooldown)
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		slog.InfoContext(ctx, "re-enqueued failed learning queue items", "count", requeued)
	}
	return requeued, nil
}

func itemIDs(items []dto.LearningQueueItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
