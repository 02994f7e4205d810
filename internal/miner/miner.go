// Package miner batches resolved tickets, extracts resolution patterns with
// the model, and synthesizes draft knowledge articles. Mining proceeds
// strictly sequentially so aggregate spend stays predictable against the
// cost governor's ceilings.
package miner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/qri-io/jsonschema"

	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/gateway"
	"github.com/deskmind/deskmind/internal/learning"
	"github.com/deskmind/deskmind/internal/metrics"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

type Config struct {
	MinCategoryTickets    int     `split_words:"true" default:"3"`
	MinPatternFrequency   int     `split_words:"true" default:"3"`
	MinPatternSuccessRate float64 `split_words:"true" default:"70"`
	TitleOverlapThreshold float64 `split_words:"true" default:"0.5"`
	WindowHours           int     `split_words:"true" default:"168"`
}

// Gateway is the model surface the miner needs.
type Gateway interface {
	InvokeJSON(ctx context.Context, req gateway.InvokeRequest, schema *jsonschema.Schema) (string, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	MaxTokensPerRequest() int
}

// TicketSource provides the resolved tickets to mine.
type TicketSource interface {
	GetTicket(ctx context.Context, id string) (*dto.Ticket, error)
	ListResolvedSince(ctx context.Context, since time.Time) ([]dto.Ticket, error)
}

// ArticleStore persists synthesized drafts and serves the duplicate check.
type ArticleStore interface {
	Insert(ctx context.Context, a dto.KnowledgeArticle) (string, error)
	ListTitlesByCategory(ctx context.Context, category string) ([]string, error)
}

// RunStats aggregates one mining run. ArticlesPublished stays zero in this
// core; publication is a human action.
type RunStats struct {
	TicketsProcessed  int
	CategoriesMined   int
	PatternsFound     int
	ArticlesCreated   int
	ArticlesPublished int
}

type Miner struct {
	cfg      Config
	gw       Gateway
	queue    *learning.Queue
	tickets  TicketSource
	articles ArticleStore
	now      func() time.Time
}

func New(cfg Config, gw Gateway, queue *learning.Queue, tickets TicketSource, articles ArticleStore) *Miner {
	return &Miner{
		cfg:      cfg,
		gw:       gw,
		queue:    queue,
		tickets:  tickets,
		articles: articles,
		now:      time.Now,
	}
}

// ProcessQueue claims every pending learning-queue item, mines the claimed
// tickets, and marks the items completed or failed per category.
func (m *Miner) ProcessQueue(ctx context.Context) (RunStats, error) {
	var stats RunStats

	items, err := m.queue.ClaimPending(ctx)
	if err != nil {
		return stats, fmt.Errorf("claiming queue: %w", err)
	}
	if len(items) == 0 {
		return stats, nil
	}

	// Resolve claimed items to tickets; items whose ticket vanished are
	// failed individually.
	byCategory := make(map[string][]dto.Ticket)
	itemsByCategory := make(map[string][]dto.LearningQueueItem)
	for _, item := range items {
		ticket, err := m.tickets.GetTicket(ctx, item.TicketID)
		if err != nil {
			if failErr := m.queue.Fail(ctx, []dto.LearningQueueItem{item}, fmt.Errorf("loading ticket: %w", err)); failErr != nil {
				slog.ErrorContext(ctx, "failed to mark queue item failed", "item", item.ID, "error", failErr)
			}
			continue
		}
		byCategory[ticket.Category] = append(byCategory[ticket.Category], *ticket)
		itemsByCategory[ticket.Category] = append(itemsByCategory[ticket.Category], item)
	}

	failedCategories := 0
	for category, tickets := range byCategory {
		categoryItems := itemsByCategory[category]

		// A category below the minimum cannot produce a valid pattern
		// (frequency needs at least the minimum); its items are done.
		if len(tickets) < m.cfg.MinCategoryTickets {
			if err := m.queue.Complete(ctx, categoryItems); err != nil {
				slog.ErrorContext(ctx, "failed to complete under-threshold items", "category", category, "error", err)
			}
			stats.TicketsProcessed += len(tickets)
			continue
		}

		catStats, err := m.mineCategory(ctx, category, tickets)
		stats.TicketsProcessed += len(tickets)
		stats.PatternsFound += catStats.PatternsFound
		stats.ArticlesCreated += catStats.ArticlesCreated
		if err != nil {
			failedCategories++
			metrics.MiningRuns.WithLabelValues("failed").Inc()
			slog.ErrorContext(ctx, "mining category failed", "category", category, "error", err)
			if failErr := m.queue.Fail(ctx, categoryItems, err); failErr != nil {
				slog.ErrorContext(ctx, "failed to mark queue items failed", "category", category, "error", failErr)
			}
			continue
		}

		stats.CategoriesMined++
		if err := m.queue.Complete(ctx, categoryItems); err != nil {
			slog.ErrorContext(ctx, "failed to complete queue items", "category", category, "error", err)
		}
	}

	if failedCategories == 0 {
		metrics.MiningRuns.WithLabelValues("success").Inc()
	}
	slog.InfoContext(ctx, "mining run finished",
		"tickets", stats.TicketsProcessed,
		"categories", stats.CategoriesMined,
		"patterns", stats.PatternsFound,
		"articles", stats.ArticlesCreated)
	return stats, nil
}

// MineWindow mines every resolved ticket in the configured window without
// touching the queue; the scheduled path.
func (m *Miner) MineWindow(ctx context.Context) (RunStats, error) {
	var stats RunStats

	since := m.now().Add(-time.Duration(m.cfg.WindowHours) * time.Hour)
	tickets, err := m.tickets.ListResolvedSince(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("listing resolved tickets: %w", err)
	}

	byCategory := make(map[string][]dto.Ticket)
	for _, t := range tickets {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	for category, categoryTickets := range byCategory {
		if len(categoryTickets) < m.cfg.MinCategoryTickets {
			continue
		}
		catStats, err := m.mineCategory(ctx, category, categoryTickets)
		stats.TicketsProcessed += len(categoryTickets)
		stats.PatternsFound += catStats.PatternsFound
		stats.ArticlesCreated += catStats.ArticlesCreated
		if err != nil {
			slog.ErrorContext(ctx, "mining category failed", "category", category, "error", err)
			continue
		}
		stats.CategoriesMined++
	}

	return stats, nil
}

// mineCategory extracts patterns from the category's tickets batch by batch,
// then synthesizes articles for patterns clearing the thresholds.
func (m *Miner) mineCategory(ctx context.Context, category string, tickets []dto.Ticket) (RunStats, error) {
	var stats RunStats

	var patterns []ResolutionPattern
	for _, batch := range planBatches(tickets, m.gw.MaxTokensPerRequest()) {
		batchPatterns, err := m.minePatterns(ctx, batch)
		if err != nil {
			// A batch too big for the token budget degrades to individual
			// tickets instead of abandoning the category.
			if blocked, ok := gateway.AsBlocked(err); ok && blocked.Reason == costgov.ReasonTokenLimit {
				slog.WarnContext(ctx, "batch over token budget, mining individually",
					"category", category, "batch_size", len(batch))
				batchPatterns, err = m.mineIndividually(ctx, batch)
			}
			if err != nil {
				return stats, err
			}
		}
		patterns = append(patterns, batchPatterns...)
	}
	stats.PatternsFound = len(patterns)

	existingTitles, err := m.articles.ListTitlesByCategory(ctx, category)
	if err != nil {
		return stats, fmt.Errorf("listing existing articles: %w", err)
	}

	relatedIDs := make([]string, 0, len(tickets))
	for _, t := range tickets {
		relatedIDs = append(relatedIDs, t.ID)
	}

	for _, pattern := range patterns {
		if pattern.Frequency < m.cfg.MinPatternFrequency || pattern.SuccessRate < m.cfg.MinPatternSuccessRate {
			continue
		}

		created, title, err := m.synthesizeArticle(ctx, category, pattern, relatedIDs, existingTitles)
		if err != nil {
			slog.WarnContext(ctx, "article synthesis failed", "category", category, "pattern", pattern.ProblemType, "error", err)
			continue
		}
		if created {
			stats.ArticlesCreated++
			existingTitles = append(existingTitles, title)
		}
	}

	return stats, nil
}

func (m *Miner) minePatterns(ctx context.Context, batch []dto.Ticket) ([]ResolutionPattern, error) {
	payload, err := m.gw.InvokeJSON(ctx, gateway.InvokeRequest{
		Prompt:      buildPatternPrompt(batch),
		Operation:   dto.OpPatternMining,
		MaxTokens:   outputReserveTokens,
		Temperature: 0.3,
	}, patternsSchema)
	if err != nil {
		return nil, err
	}

	var parsed patternsPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling patterns: %w", err)
	}
	return parsed.Patterns, nil
}

func (m *Miner) mineIndividually(ctx context.Context, batch []dto.Ticket) ([]ResolutionPattern, error) {
	var patterns []ResolutionPattern
	for _, ticket := range batch {
		single, err := m.minePatterns(ctx, []dto.Ticket{ticket})
		if err != nil {
			return nil, fmt.Errorf("mining ticket %s individually: %w", ticket.ID, err)
		}
		patterns = append(patterns, single...)
	}
	return patterns, nil
}

// synthesizeArticle generates a draft from a pattern, skipping creation when
// the title overlaps an existing article. Drafts are unconditional: whatever
// the model suggests, nothing the miner writes is published.
func (m *Miner) synthesizeArticle(ctx context.Context, category string, pattern ResolutionPattern, relatedIDs []string, existingTitles []string) (bool, string, error) {
	payload, err := m.gw.InvokeJSON(ctx, gateway.InvokeRequest{
		Prompt:      buildArticlePrompt(pattern),
		Operation:   dto.OpArticleSynthesis,
		MaxTokens:   1500,
		Temperature: 0.4,
	}, articleSchema)
	if err != nil {
		return false, "", err
	}

	var parsed articlePayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return false, "", fmt.Errorf("unmarshaling article: %w", err)
	}

	if isDuplicateTitle(parsed.Title, existingTitles, m.cfg.TitleOverlapThreshold) {
		slog.InfoContext(ctx, "skipping duplicate article", "title", parsed.Title, "category", category)
		return false, "", nil
	}

	article := dto.KnowledgeArticle{
		Title:             parsed.Title,
		Content:           parsed.Content,
		Category:          category,
		Tags:              parsed.Tags,
		Difficulty:        defaultString(parsed.Difficulty, "intermediate"),
		EstimatedReadTime: max(parsed.EstimatedReadTime, 1),
		RelatedTicketIDs:  relatedIDs,
		Confidence:        clampConfidence(parsed.Confidence),
		Status:            dto.ArticleStatusDraft,
	}

	// Embedding is best effort; a draft without one still works through the
	// keyword search path.
	if embedding, err := m.gw.EmbedText(ctx, parsed.Title+"\n"+parsed.Content); err == nil {
		article.Embedding.V = pgvector.NewVector(embedding)
		article.Embedding.Valid = true
	} else {
		slog.DebugContext(ctx, "skipping article embedding", "title", parsed.Title, "error", err)
	}

	if _, err := m.articles.Insert(ctx, article); err != nil {
		return false, "", fmt.Errorf("inserting article: %w", err)
	}
	return true, parsed.Title, nil
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func clampConfidence(v float64) int {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
