package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// LedgerStore provides database operations for the model-usage ledger.
// Records are append-only; the only mutation is retention pruning.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a ledger store backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Append writes a single usage record.
func (s *LedgerStore) Append(ctx context.Context, rec dto.UsageRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_records
		 (created_at, model_id, input_tokens, output_tokens, estimated_cost, operation, user_id, ticket_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.CreatedAt, rec.ModelID, rec.InputTokens, rec.OutputTokens,
		rec.EstimatedCost, rec.Operation, rec.UserID, rec.TicketID,
	)
	if err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

// Prune deletes records created before the cutoff and returns the number of
// rows removed.
func (s *LedgerStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM usage_records WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("pruning usage records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SummaryBetween aggregates tokens, cost, request count and per-operation
// counts over [from, to).
func (s *LedgerStore) SummaryBetween(ctx context.Context, from, to time.Time) (dto.UsageSummary, error) {
	summary := dto.UsageSummary{ByOperation: make(map[string]int)}

	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(estimated_cost), 0),
			COUNT(*)
		 FROM usage_records
		 WHERE created_at >= $1 AND created_at < $2`,
		from, to,
	).Scan(&summary.InputTokens, &summary.OutputTokens, &summary.TotalCost, &summary.RequestCount)
	if err != nil {
		return summary, fmt.Errorf("summarizing usage: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT operation, COUNT(*)
		 FROM usage_records
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY operation`,
		from, to,
	)
	if err != nil {
		return summary, fmt.Errorf("counting usage by operation: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var op string
		var count int
		if err := rows.Scan(&op, &count); err != nil {
			return summary, fmt.Errorf("scanning operation count: %w", err)
		}
		summary.ByOperation[op] = count
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterating operation counts: %w", err)
	}

	return summary, nil
}

// CountBetween returns the number of requests recorded in [from, to).
func (s *LedgerStore) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE created_at >= $1 AND created_at < $2`,
		from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage records: %w", err)
	}
	return count, nil
}
