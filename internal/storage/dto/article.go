package dto

import (
	"time"
)

// Article statuses. The miner only ever writes drafts; publishing is a
// human action in the surrounding application.
const (
	ArticleStatusDraft     = "draft"
	ArticleStatusPublished = "published"
)

type KnowledgeArticle struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Content           string         `json:"content"`
	Category          string         `json:"category"`
	Tags              []string       `json:"tags"`
	Difficulty        string         `json:"difficulty"`
	EstimatedReadTime int            `json:"estimated_read_time"`
	RelatedTicketIDs  []string       `json:"related_ticket_ids"`
	Confidence        int            `json:"confidence"`
	Status            string         `json:"status"`
	Embedding         NullableVector `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ComplexityScore is the derived triage score, upserted per ticket.
type ComplexityScore struct {
	TicketID  string       `json:"ticket_id"`
	Score     int          `json:"score"`
	Factors   ScoreFactors `json:"factors"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ScoreFactors records the additive terms that produced a complexity score.
type ScoreFactors struct {
	Complexity    int `json:"complexity"`
	Priority      int `json:"priority"`
	EstimatedTime int `json:"estimated_time"`
	Confidence    int `json:"confidence"`
}

// AutoResponseRecord is the persisted outcome of an auto-response decision.
type AutoResponseRecord struct {
	ID               int64     `json:"id"`
	TicketID         string    `json:"ticket_id"`
	Response         string    `json:"response"`
	Confidence       int       `json:"confidence"`
	Applied          bool      `json:"applied"`
	EscalationNeeded bool      `json:"escalation_needed"`
	CreatedAt        time.Time `json:"created_at"`
}
