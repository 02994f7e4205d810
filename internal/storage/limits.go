package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// LimitsStore persists the singleton cost-limits row.
type LimitsStore struct {
	pool *pgxpool.Pool
}

func NewLimitsStore(pool *pgxpool.Pool) *LimitsStore {
	return &LimitsStore{pool: pool}
}

// Get returns the stored limits, or nil when none have been persisted yet.
func (s *LimitsStore) Get(ctx context.Context) (*dto.CostLimits, error) {
	limits := &dto.CostLimits{}
	err := s.pool.QueryRow(ctx,
		`SELECT daily_limit_usd, monthly_limit_usd, max_tokens_per_request,
		        max_requests_per_day, max_requests_per_hour, is_free_tier_account, updated_at
		 FROM cost_limits WHERE singleton`,
	).Scan(
		&limits.DailyLimitUSD, &limits.MonthlyLimitUSD, &limits.MaxTokensPerRequest,
		&limits.MaxRequestsPerDay, &limits.MaxRequestsPerHour, &limits.IsFreeTierAccount,
		&limits.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cost limits: %w", err)
	}
	return limits, nil
}

// Put upserts the singleton limits row.
func (s *LimitsStore) Put(ctx context.Context, limits dto.CostLimits) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_limits
		 (singleton, daily_limit_usd, monthly_limit_usd, max_tokens_per_request,
		  max_requests_per_day, max_requests_per_hour, is_free_tier_account, updated_at)
		 VALUES (TRUE, $1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (singleton) DO UPDATE SET
		   daily_limit_usd = EXCLUDED.daily_limit_usd,
		   monthly_limit_usd = EXCLUDED.monthly_limit_usd,
		   max_tokens_per_request = EXCLUDED.max_tokens_per_request,
		   max_requests_per_day = EXCLUDED.max_requests_per_day,
		   max_requests_per_hour = EXCLUDED.max_requests_per_hour,
		   is_free_tier_account = EXCLUDED.is_free_tier_account,
		   updated_at = NOW()`,
		limits.DailyLimitUSD, limits.MonthlyLimitUSD, limits.MaxTokensPerRequest,
		limits.MaxRequestsPerDay, limits.MaxRequestsPerHour, limits.IsFreeTierAccount,
	)
	if err != nil {
		return fmt.Errorf("upserting cost limits: %w", err)
	}
	return nil
}
