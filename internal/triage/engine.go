// Package triage turns ticket events into automated decisions: analysis,
// knowledge-grounded auto-response, complexity scoring, and the escalation
// and apply gates. Every AI stage degrades to a documented default instead of
// failing the ticket workflow.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/qri-io/jsonschema"

	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/gateway"
	"github.com/deskmind/deskmind/internal/knowledge"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

// Per-stage output allowances, in tokens.
const (
	analysisMaxTokens = 800
	responseMaxTokens = 1500
)

type Config struct {
	AutoResponseEnabled      bool   `split_words:"true" default:"true"`
	ConfidenceThreshold      int    `split_words:"true" default:"70"`
	EscalationScoreThreshold int    `split_words:"true" default:"80"`
	FallbackTeamID           string `split_words:"true"`
	MaxResponseLength        int    `split_words:"true" default:"4000"`
	ResponseAuthorID         string `split_words:"true" default:"deskmind"`
}

// Gateway is the model-invocation surface the engine needs.
type Gateway interface {
	InvokeJSON(ctx context.Context, req gateway.InvokeRequest, schema *jsonschema.Schema) (string, error)
}

// TicketRepo is the repository collaborator; persistence lives outside the
// engine.
type TicketRepo interface {
	GetTicket(ctx context.Context, id string) (*dto.Ticket, error)
	AddComment(ctx context.Context, comment dto.TicketComment) error
	UpdateTicketTeam(ctx context.Context, ticketID string, teamID string) error
	UpsertComplexityScore(ctx context.Context, score dto.ComplexityScore) error
	InsertAutoResponse(ctx context.Context, rec dto.AutoResponseRecord) error
}

// StageOutcome records a pipeline stage that degraded. An empty list means a
// clean run.
type StageOutcome struct {
	Stage string
	Err   string
}

// Result is the structured outcome of one ticket-processing run.
type Result struct {
	TicketID         string
	Skipped          bool
	SkipReason       string
	Analysis         TicketAnalysis
	AnalysisFallback bool
	Response         *AutoResponse
	Score            int
	Escalated        bool
	Applied          bool
	Degraded         []StageOutcome
}

type Engine struct {
	cfg       Config
	gw        Gateway
	search    knowledge.Searcher
	repo      TicketRepo
	limiter   *costgov.UserLimiter
	hourlyCap int
}

func New(cfg Config, gw Gateway, search knowledge.Searcher, repo TicketRepo, limiter *costgov.UserLimiter, hourlyCap int) *Engine {
	return &Engine{
		cfg:       cfg,
		gw:        gw,
		search:    search,
		repo:      repo,
		limiter:   limiter,
		hourlyCap: hourlyCap,
	}
}

// Process runs the triage pipeline for one ticket. AI-stage failures degrade
// the result; only repository failures on the ticket itself are returned as
// errors.
func (e *Engine) Process(ctx context.Context, ticketID string) (*Result, error) {
	ticket, err := e.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}

	result := &Result{TicketID: ticketID}

	// Fast-path per-user throttle, ahead of any durable budget check.
	if e.limiter != nil && !e.limiter.Allow(ticket.RequesterID, e.hourlyCap) {
		result.Skipped = true
		result.SkipReason = "requester hourly limit reached"
		slog.InfoContext(ctx, "skipping triage, requester throttled", "ticket", ticketID, "requester", ticket.RequesterID)
		return result, nil
	}

	analysis, ok := e.analyze(ctx, ticket, result)
	if !ok {
		// No credentials or model configured: the AI feature is off and the
		// ticket workflow continues untouched.
		result.Skipped = true
		result.SkipReason = "gateway not configured"
		return result, nil
	}
	result.Analysis = analysis

	snippets := e.searchKnowledge(ctx, ticket, analysis, result)

	var response *AutoResponse
	if e.cfg.AutoResponseEnabled {
		response = e.generateResponse(ctx, ticket, analysis, snippets, result)
	}
	result.Response = response

	score, factors := ComplexityScore(analysis)
	result.Score = score

	escalate := ShouldEscalate(analysis, response) || score >= e.cfg.EscalationScoreThreshold
	result.Applied = e.apply(ctx, ticket, response, escalate, result)

	// A run that did not auto-respond always goes to a human.
	if !result.Applied {
		escalate = true
	}
	result.Escalated = escalate

	if escalate && e.cfg.FallbackTeamID != "" {
		if err := e.repo.UpdateTicketTeam(ctx, ticketID, e.cfg.FallbackTeamID); err != nil {
			result.Degraded = append(result.Degraded, StageOutcome{Stage: "reassign", Err: err.Error()})
			slog.WarnContext(ctx, "failed to reassign escalated ticket", "ticket", ticketID, "error", err)
		}
	}

	if err := e.repo.UpsertComplexityScore(ctx, dto.ComplexityScore{
		TicketID: ticketID,
		Score:    score,
		Factors:  factors,
	}); err != nil {
		result.Degraded = append(result.Degraded, StageOutcome{Stage: "persist_score", Err: err.Error()})
		slog.WarnContext(ctx, "failed to persist complexity score", "ticket", ticketID, "error", err)
	}

	slog.InfoContext(ctx, "triage run finished",
		"ticket", ticketID,
		"score", score,
		"escalated", result.Escalated,
		"applied", result.Applied,
		"degraded_stages", len(result.Degraded))
	return result, nil
}

// analyze runs the analysis model call. The second return is false only when
// the gateway is unconfigured; every other failure substitutes the safe
// default.
func (e *Engine) analyze(ctx context.Context, ticket *dto.Ticket, result *Result) (TicketAnalysis, bool) {
	payload, err := e.gw.InvokeJSON(ctx, gateway.InvokeRequest{
		Prompt:      buildAnalysisPrompt(ticket),
		Operation:   dto.OpTriageAnalysis,
		MaxTokens:   analysisMaxTokens,
		Temperature: 0.2,
		UserID:      &ticket.RequesterID,
		TicketID:    &ticket.ID,
	}, analysisSchema)
	if errors.Is(err, gateway.ErrNotConfigured) {
		return TicketAnalysis{}, false
	}
	if err == nil {
		if analysis, decodeErr := decodeAnalysis(payload); decodeErr == nil {
			return analysis, true
		} else {
			err = decodeErr
		}
	}

	result.AnalysisFallback = true
	result.Degraded = append(result.Degraded, StageOutcome{Stage: "analyze", Err: err.Error()})
	slog.WarnContext(ctx, "analysis failed, using default", "ticket", ticket.ID, "error", err)
	return defaultAnalysis(ticket), true
}

// defaultAnalysis is the documented safe substitute when analysis fails:
// medium complexity, zero confidence, the ticket's own category and priority.
func defaultAnalysis(ticket *dto.Ticket) TicketAnalysis {
	return TicketAnalysis{
		Complexity: ComplexityMedium,
		Category:   ticket.Category,
		Priority:   ticket.Priority,
		Confidence: 0,
		Reasoning:  "analysis unavailable, defaults applied",
	}
}

func (e *Engine) searchKnowledge(ctx context.Context, ticket *dto.Ticket, analysis TicketAnalysis, result *Result) []knowledge.Snippet {
	query := ticket.Subject
	if analysis.Category != "" {
		query = analysis.Category + " " + query
	}

	snippets, err := e.search.Search(ctx, query, 5)
	if err != nil {
		result.Degraded = append(result.Degraded, StageOutcome{Stage: "search", Err: err.Error()})
		slog.WarnContext(ctx, "knowledge search failed", "ticket", ticket.ID, "error", err)
		return nil
	}
	return snippets
}

func (e *Engine) generateResponse(ctx context.Context, ticket *dto.Ticket, analysis TicketAnalysis, snippets []knowledge.Snippet, result *Result) *AutoResponse {
	payload, err := e.gw.InvokeJSON(ctx, gateway.InvokeRequest{
		Prompt:      buildResponsePrompt(ticket, analysis, snippets),
		Operation:   dto.OpAutoResponse,
		MaxTokens:   responseMaxTokens,
		Temperature: 0.5,
		UserID:      &ticket.RequesterID,
		TicketID:    &ticket.ID,
	}, responseSchema)
	if err == nil {
		if response, decodeErr := decodeResponse(payload); decodeErr == nil {
			return &response
		} else {
			err = decodeErr
		}
	}

	result.Degraded = append(result.Degraded, StageOutcome{Stage: "respond", Err: err.Error()})
	slog.WarnContext(ctx, "auto-response generation failed", "ticket", ticket.ID, "error", err)
	return nil
}

// apply posts the response as a ticket comment and persists the record. The
// response is applied only when auto-response is enabled, its confidence
// clears the threshold, and the run is not escalating.
func (e *Engine) apply(ctx context.Context, ticket *dto.Ticket, response *AutoResponse, escalate bool, result *Result) bool {
	if response == nil {
		return false
	}

	applied := e.cfg.AutoResponseEnabled &&
		int(response.Confidence) >= e.cfg.ConfidenceThreshold &&
		!escalate

	if applied {
		body := truncate(response.Response, e.cfg.MaxResponseLength)
		if err := e.repo.AddComment(ctx, dto.TicketComment{
			TicketID:  ticket.ID,
			AuthorID:  e.cfg.ResponseAuthorID,
			Body:      body,
			Automated: true,
		}); err != nil {
			result.Degraded = append(result.Degraded, StageOutcome{Stage: "apply", Err: err.Error()})
			slog.WarnContext(ctx, "failed to post auto-response comment", "ticket", ticket.ID, "error", err)
			applied = false
		}
	}

	if err := e.repo.InsertAutoResponse(ctx, dto.AutoResponseRecord{
		TicketID:         ticket.ID,
		Response:         truncate(response.Response, e.cfg.MaxResponseLength),
		Confidence:       int(response.Confidence),
		Applied:          applied,
		EscalationNeeded: response.EscalationNeeded,
	}); err != nil {
		result.Degraded = append(result.Degraded, StageOutcome{Stage: "persist_response", Err: err.Error()})
		slog.WarnContext(ctx, "failed to persist auto-response record", "ticket", ticket.ID, "error", err)
	}

	return applied
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
