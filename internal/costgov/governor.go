// Package costgov enforces the spend budget for model calls: a durable usage
// ledger, a singleton limits row, and the ordered pre-flight checks every
// call must pass.
package costgov

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskmind/deskmind/internal/metrics"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

// retentionWindow is how long ledger rows are kept. Pruned on every write.
const retentionWindow = 30 * 24 * time.Hour

// Free-tier hard ceilings. When the account is flagged free tier, no caller
// can raise limits past these, whatever it asks for.
const (
	FreeTierDailyUSD        = 3.0
	FreeTierMonthlyUSD      = 25.0
	FreeTierTokensPerReq    = 3000
	FreeTierRequestsPerDay  = 1500
	FreeTierRequestsPerHour = 300
)

// Block reasons returned in Decision.Reason. The gateway matches on
// ReasonTokenLimit to pick its degraded path.
const (
	ReasonDailyCost   = "Daily cost limit exceeded"
	ReasonMonthlyCost = "Monthly cost limit exceeded"
	ReasonTokenLimit  = "Per-request token limit exceeded"
	ReasonDailyCount  = "Daily request limit exceeded"
	ReasonHourlyCount = "Hourly request limit exceeded"
)

// LedgerStore is the durable usage ledger the governor reads and appends to.
type LedgerStore interface {
	Append(ctx context.Context, rec dto.UsageRecord) error
	Prune(ctx context.Context, before time.Time) (int64, error)
	SummaryBetween(ctx context.Context, from, to time.Time) (dto.UsageSummary, error)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

// LimitsStore persists the singleton limits row. Get returns nil when no row
// exists yet.
type LimitsStore interface {
	Get(ctx context.Context) (*dto.CostLimits, error)
	Put(ctx context.Context, limits dto.CostLimits) error
}

// Decision is the outcome of a pre-flight budget check.
type Decision struct {
	Blocked       bool
	Reason        string
	EstimatedCost float64
}

// UsageParams describes one completed call for the ledger.
type UsageParams struct {
	ModelID      string
	InputTokens  int
	OutputTokens int
	Operation    string
	UserID       *string
	TicketID     *string
}

type Governor struct {
	ledger LedgerStore
	limits LimitsStore
	now    func() time.Time

	mu     sync.RWMutex
	cached dto.CostLimits
}

// New loads the stored limits, persisting free-tier defaults when none exist.
// Store failures here are fatal: running without limits means running without
// a budget.
func New(ctx context.Context, ledger LedgerStore, limits LimitsStore) (*Governor, error) {
	g := &Governor{
		ledger: ledger,
		limits: limits,
		now:    time.Now,
	}

	stored, err := limits.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cost limits: %w", err)
	}
	if stored == nil {
		defaults := defaultLimits()
		if err := limits.Put(ctx, defaults); err != nil {
			return nil, fmt.Errorf("persisting default cost limits: %w", err)
		}
		slog.InfoContext(ctx, "no cost limits found, persisted free-tier defaults")
		stored = &defaults
	}

	g.cached = *stored
	return g, nil
}

func defaultLimits() dto.CostLimits {
	return dto.CostLimits{
		DailyLimitUSD:       FreeTierDailyUSD,
		MonthlyLimitUSD:     FreeTierMonthlyUSD,
		MaxTokensPerRequest: FreeTierTokensPerReq,
		MaxRequestsPerDay:   FreeTierRequestsPerDay,
		MaxRequestsPerHour:  FreeTierRequestsPerHour,
		IsFreeTierAccount:   true,
	}
}

// Limits returns the current in-memory limits.
func (g *Governor) Limits() dto.CostLimits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cached
}

// EstimateTokens is a method alias so callers holding a Governor need no
// extra import for estimation.
func (g *Governor) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

// EstimateCost looks up the price table for a call estimate.
func (g *Governor) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	return EstimateCost(modelID, inputTokens, outputTokens)
}

// RecordUsage appends a ledger row with the call's actual token counts and
// prunes rows past the retention window. The ledger reflects real usage, not
// pre-call estimates.
func (g *Governor) RecordUsage(ctx context.Context, p UsageParams) error {
	now := g.now()
	cost := EstimateCost(p.ModelID, p.InputTokens, p.OutputTokens)

	rec := dto.UsageRecord{
		CreatedAt:     now,
		ModelID:       p.ModelID,
		InputTokens:   p.InputTokens,
		OutputTokens:  p.OutputTokens,
		EstimatedCost: cost,
		Operation:     p.Operation,
		UserID:        p.UserID,
		TicketID:      p.TicketID,
	}
	if err := g.ledger.Append(ctx, rec); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}

	metrics.TokensUsed.WithLabelValues(p.ModelID, "input").Add(float64(p.InputTokens))
	metrics.TokensUsed.WithLabelValues(p.ModelID, "output").Add(float64(p.OutputTokens))
	metrics.SpendUSD.WithLabelValues(p.ModelID).Add(cost)

	if _, err := g.ledger.Prune(ctx, now.Add(-retentionWindow)); err != nil {
		return fmt.Errorf("pruning ledger: %w", err)
	}
	return nil
}

// ShouldBlock evaluates the budget checks in fixed order and returns on the
// first violation: daily cost, monthly cost, per-request tokens, daily count,
// hourly count (sliding 60 minutes).
func (g *Governor) ShouldBlock(ctx context.Context, modelID string, estInputTokens, estOutputTokens int, operation string) (Decision, error) {
	limits := g.Limits()
	now := g.now()
	estimatedCost := EstimateCost(modelID, estInputTokens, estOutputTokens)

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daily, err := g.ledger.SummaryBetween(ctx, dayStart, now)
	if err != nil {
		return Decision{}, fmt.Errorf("reading daily usage: %w", err)
	}
	if daily.TotalCost+estimatedCost > limits.DailyLimitUSD {
		return g.blocked(ReasonDailyCost, estimatedCost), nil
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthly, err := g.ledger.SummaryBetween(ctx, monthStart, now)
	if err != nil {
		return Decision{}, fmt.Errorf("reading monthly usage: %w", err)
	}
	if monthly.TotalCost+estimatedCost > limits.MonthlyLimitUSD {
		return g.blocked(ReasonMonthlyCost, estimatedCost), nil
	}

	if estInputTokens+estOutputTokens > limits.MaxTokensPerRequest {
		return g.blocked(ReasonTokenLimit, estimatedCost), nil
	}

	if daily.RequestCount >= limits.MaxRequestsPerDay {
		return g.blocked(ReasonDailyCount, estimatedCost), nil
	}

	hourly, err := g.ledger.CountBetween(ctx, now.Add(-time.Hour), now)
	if err != nil {
		return Decision{}, fmt.Errorf("reading hourly usage: %w", err)
	}
	if hourly >= limits.MaxRequestsPerHour {
		return g.blocked(ReasonHourlyCount, estimatedCost), nil
	}

	return Decision{EstimatedCost: estimatedCost}, nil
}

func (g *Governor) blocked(reason string, estimatedCost float64) Decision {
	metrics.BlockedCalls.WithLabelValues(reason).Inc()
	return Decision{Blocked: true, Reason: reason, EstimatedCost: estimatedCost}
}

// DailyUsage aggregates the ledger for the given day (today when zero).
func (g *Governor) DailyUsage(ctx context.Context, date time.Time) (dto.UsageSummary, error) {
	if date.IsZero() {
		date = g.now()
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return g.ledger.SummaryBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
}

// MonthlyUsage aggregates the ledger for the given month (current when zero).
func (g *Governor) MonthlyUsage(ctx context.Context, year int, month time.Month) (dto.UsageSummary, error) {
	if year == 0 {
		now := g.now()
		year, month = now.Year(), now.Month()
	}
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return g.ledger.SummaryBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
}

// UpdateLimits merges a partial update into the stored limits. On free-tier
// accounts every numeric field is clamped to the hard ceilings regardless of
// the requested value, so a compromised caller cannot raise its own budget.
func (g *Governor) UpdateLimits(ctx context.Context, update dto.CostLimitsUpdate) (dto.CostLimits, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	merged := g.cached
	if update.DailyLimitUSD != nil {
		merged.DailyLimitUSD = *update.DailyLimitUSD
	}
	if update.MonthlyLimitUSD != nil {
		merged.MonthlyLimitUSD = *update.MonthlyLimitUSD
	}
	if update.MaxTokensPerRequest != nil {
		merged.MaxTokensPerRequest = *update.MaxTokensPerRequest
	}
	if update.MaxRequestsPerDay != nil {
		merged.MaxRequestsPerDay = *update.MaxRequestsPerDay
	}
	if update.MaxRequestsPerHour != nil {
		merged.MaxRequestsPerHour = *update.MaxRequestsPerHour
	}
	if update.IsFreeTierAccount != nil {
		merged.IsFreeTierAccount = *update.IsFreeTierAccount
	}

	if merged.IsFreeTierAccount {
		merged.DailyLimitUSD = min(merged.DailyLimitUSD, FreeTierDailyUSD)
		merged.MonthlyLimitUSD = min(merged.MonthlyLimitUSD, FreeTierMonthlyUSD)
		merged.MaxTokensPerRequest = min(merged.MaxTokensPerRequest, FreeTierTokensPerReq)
		merged.MaxRequestsPerDay = min(merged.MaxRequestsPerDay, FreeTierRequestsPerDay)
		merged.MaxRequestsPerHour = min(merged.MaxRequestsPerHour, FreeTierRequestsPerHour)
	}

	if err := g.limits.Put(ctx, merged); err != nil {
		return dto.CostLimits{}, fmt.Errorf("persisting cost limits: %w", err)
	}

	g.cached = merged
	return merged, nil
}
