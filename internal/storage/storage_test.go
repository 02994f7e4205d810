package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	postgresContainer, err := postgres.Run(ctx, PostgresImage, postgres.BasicWaitStrategies())
	require.NoError(t, err)
	t.Cleanup(func() { _ = postgresContainer.Stop(ctx, nil) })

	db, err := New(ctx, postgresContainer.MustConnectionString(ctx, "sslmode=disable"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func insertTicket(t *testing.T, db *pgxpool.Pool, ticket dto.Ticket) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO tickets (id, subject, description, category, priority, status, requester_id, resolution, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ticket.ID, ticket.Subject, ticket.Description, ticket.Category,
		ticket.Priority, ticket.Status, ticket.RequesterID, ticket.Resolution, ticket.ResolvedAt,
	)
	require.NoError(t, err)
}

func TestTicketStore(t *testing.T) {
	db := setupDB(t)
	store := NewTicketStore(db)
	ctx := context.Background()

	resolvedAt := time.Now().Add(-time.Hour)
	insertTicket(t, db, dto.Ticket{
		ID:          "T-1",
		Subject:     "vpn down",
		Description: "cannot connect",
		Category:    "network",
		Priority:    dto.PriorityHigh,
		Status:      dto.TicketStatusResolved,
		RequesterID: "alice",
		Resolution:  "restarted the concentrator",
		ResolvedAt:  &resolvedAt,
	})

	ticket, err := store.GetTicket(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, "vpn down", ticket.Subject)
	require.Nil(t, ticket.AssignedTeamID)

	_, err = store.GetTicket(ctx, "T-404")
	require.ErrorIs(t, err, ErrNotFound)

	resolved, err := store.ListResolvedSince(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	require.NoError(t, store.UpdateTicketTeam(ctx, "T-1", "tier2"))
	ticket, err = store.GetTicket(ctx, "T-1")
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedTeamID)
	require.Equal(t, "tier2", *ticket.AssignedTeamID)

	require.ErrorIs(t, store.UpdateTicketTeam(ctx, "T-404", "tier2"), ErrNotFound)

	require.NoError(t, store.AddComment(ctx, dto.TicketComment{
		TicketID:  "T-1",
		AuthorID:  "deskmind",
		Body:      "try restarting the client",
		Automated: true,
	}))
	comments, err := store.ListComments(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.True(t, comments[0].Automated)

	score := dto.ComplexityScore{
		TicketID: "T-1",
		Score:    85,
		Factors:  dto.ScoreFactors{Complexity: 60, Priority: 25},
	}
	require.NoError(t, store.UpsertComplexityScore(ctx, score))

	// Upsert replaces, not duplicates.
	score.Score = 40
	require.NoError(t, store.UpsertComplexityScore(ctx, score))
	got, err := store.GetComplexityScore(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, 40, got.Score)
	require.Equal(t, score.Factors, got.Factors)

	require.NoError(t, store.InsertAutoResponse(ctx, dto.AutoResponseRecord{
		TicketID:   "T-1",
		Response:   "restart the client",
		Confidence: 80,
		Applied:    true,
	}))
}

func TestLedgerStore(t *testing.T) {
	db := setupDB(t)
	store := NewLedgerStore(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	userID := "alice"
	require.NoError(t, store.Append(ctx, dto.UsageRecord{
		CreatedAt:     now,
		ModelID:       "amazon.titan-text-express-v1",
		InputTokens:   1000,
		OutputTokens:  500,
		EstimatedCost: 0.0016,
		Operation:     dto.OpTriageAnalysis,
		UserID:        &userID,
	}))
	require.NoError(t, store.Append(ctx, dto.UsageRecord{
		CreatedAt:     now.Add(-48 * time.Hour),
		ModelID:       "amazon.titan-text-express-v1",
		InputTokens:   2000,
		EstimatedCost: 0.0016,
		Operation:     dto.OpPatternMining,
	}))

	summary, err := store.SummaryBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1000), summary.InputTokens)
	require.Equal(t, int64(500), summary.OutputTokens)
	require.Equal(t, 1, summary.RequestCount)
	require.Equal(t, map[string]int{dto.OpTriageAnalysis: 1}, summary.ByOperation)

	count, err := store.CountBetween(ctx, now.Add(-72*time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	pruned, err := store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)
}

func TestLimitsStore(t *testing.T) {
	db := setupDB(t)
	store := NewLimitsStore(db)
	ctx := context.Background()

	limits, err := store.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, limits)

	require.NoError(t, store.Put(ctx, dto.CostLimits{
		DailyLimitUSD:       3,
		MonthlyLimitUSD:     25,
		MaxTokensPerRequest: 3000,
		MaxRequestsPerDay:   1500,
		MaxRequestsPerHour:  300,
		IsFreeTierAccount:   true,
	}))

	limits, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, limits)
	require.Equal(t, 3.0, limits.DailyLimitUSD)

	// Second Put updates the singleton in place.
	require.NoError(t, store.Put(ctx, dto.CostLimits{
		DailyLimitUSD:       50,
		MonthlyLimitUSD:     400,
		MaxTokensPerRequest: 8000,
		MaxRequestsPerDay:   10000,
		MaxRequestsPerHour:  1000,
		IsFreeTierAccount:   false,
	}))
	limits, err = store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 50.0, limits.DailyLimitUSD)
	require.False(t, limits.IsFreeTierAccount)

	var rows int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM cost_limits`).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestQueueStore(t *testing.T) {
	db := setupDB(t)
	store := NewQueueStore(db)
	ctx := context.Background()

	inserted, err := store.Enqueue(ctx, "T-1")
	require.NoError(t, err)
	require.True(t, inserted)

	// A second enqueue for an active ticket is a no-op.
	inserted, err = store.Enqueue(ctx, "T-1")
	require.NoError(t, err)
	require.False(t, inserted)

	items, err := store.ClaimPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, dto.QueueProcessing, items[0].Status)
	require.Equal(t, 1, items[0].ProcessingAttempts)

	// Still active while processing.
	inserted, err = store.Enqueue(ctx, "T-1")
	require.NoError(t, err)
	require.False(t, inserted)

	require.NoError(t, store.Fail(ctx, []int64{items[0].ID}, "mining failed"))
	item, err := store.Get(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, dto.QueueFailed, item.Status)
	require.Equal(t, "mining failed", item.Error)

	// Inside the cooldown nothing is requeued; with a zero cooldown the item
	// comes back.
	requeued, err := store.RequeueFailed(ctx, 3, time.Hour)
	require.NoError(t, err)
	require.Zero(t, requeued)

	requeued, err = store.RequeueFailed(ctx, 3, -time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), requeued)

	items, err = store.ClaimPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].ProcessingAttempts)

	require.NoError(t, store.Complete(ctx, []int64{items[0].ID}))
	item, err = store.Get(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, dto.QueueCompleted, item.Status)
	require.NotNil(t, item.ProcessedAt)

	// Completed items no longer block a fresh enqueue.
	inserted, err = store.Enqueue(ctx, "T-1")
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestArticleStore(t *testing.T) {
	db := setupDB(t)
	store := NewArticleStore(db)
	ctx := context.Background()

	id, err := store.Insert(ctx, dto.KnowledgeArticle{
		Title:             "Fixing VPN disconnects",
		Content:           "Reissue the certificate.",
		Category:          "network",
		Tags:              []string{"vpn"},
		Difficulty:        "beginner",
		EstimatedReadTime: 3,
		RelatedTicketIDs:  []string{"T-1", "T-2"},
		Confidence:        85,
		Status:            dto.ArticleStatusDraft,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	titles, err := store.ListTitlesByCategory(ctx, "network")
	require.NoError(t, err)
	require.Equal(t, []string{"Fixing VPN disconnects"}, titles)

	// Drafts are invisible to search; only published articles ground
	// responses.
	found, err := store.SearchKeyword(ctx, "vpn", 5)
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = db.Exec(ctx, `UPDATE knowledge_articles SET status = 'published' WHERE id = $1`, id)
	require.NoError(t, err)

	found, err = store.SearchKeyword(ctx, "vpn", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, []string{"T-1", "T-2"}, found[0].RelatedTicketIDs)
}
