package dto

import (
	"time"
)

// Valid operation types for the UsageRecord.Operation field.
const (
	OpTriageAnalysis   = "triage_analysis"
	OpAutoResponse     = "auto_response"
	OpPatternMining    = "pattern_mining"
	OpArticleSynthesis = "article_synthesis"
	OpEmbedding        = "embedding"
)

// UsageRecord is one row of the model-usage ledger. Records are immutable
// once written and pruned to a 30-day rolling window.
type UsageRecord struct {
	ID            int64     `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ModelID       string    `json:"model_id"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	EstimatedCost float64   `json:"estimated_cost"`
	Operation     string    `json:"operation"`
	UserID        *string   `json:"user_id,omitempty"`
	TicketID      *string   `json:"ticket_id,omitempty"`
}

// UsageSummary aggregates the ledger over a time window.
type UsageSummary struct {
	InputTokens  int64          `json:"input_tokens"`
	OutputTokens int64          `json:"output_tokens"`
	TotalCost    float64        `json:"total_cost"`
	RequestCount int            `json:"request_count"`
	ByOperation  map[string]int `json:"by_operation"`
}

// CostLimits is the singleton spend-control row.
type CostLimits struct {
	DailyLimitUSD       float64   `json:"daily_limit_usd"`
	MonthlyLimitUSD     float64   `json:"monthly_limit_usd"`
	MaxTokensPerRequest int       `json:"max_tokens_per_request"`
	MaxRequestsPerDay   int       `json:"max_requests_per_day"`
	MaxRequestsPerHour  int       `json:"max_requests_per_hour"`
	IsFreeTierAccount   bool      `json:"is_free_tier_account"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CostLimitsUpdate is a partial update; nil fields keep their stored value.
type CostLimitsUpdate struct {
	DailyLimitUSD       *float64 `json:"daily_limit_usd,omitempty"`
	MonthlyLimitUSD     *float64 `json:"monthly_limit_usd,omitempty"`
	MaxTokensPerRequest *int     `json:"max_tokens_per_request,omitempty"`
	MaxRequestsPerDay   *int     `json:"max_requests_per_day,omitempty"`
	MaxRequestsPerHour  *int     `json:"max_requests_per_hour,omitempty"`
	IsFreeTierAccount   *bool    `json:"is_free_tier_account,omitempty"`
}
