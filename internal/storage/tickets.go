package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TicketStore is the pgx implementation of the ticket repository the core
// consumes. Ticket lifecycle beyond assignment belongs to the surrounding
// application.
type TicketStore struct {
	pool *pgxpool.Pool
}

func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool}
}

const ticketColumns = `id, subject, description, category, priority, status,
	requester_id, assigned_team_id, resolution, created_at, resolved_at`

func scanTicket(row pgx.Row) (*dto.Ticket, error) {
	t := &dto.Ticket{}
	err := row.Scan(
		&t.ID, &t.Subject, &t.Description, &t.Category, &t.Priority, &t.Status,
		&t.RequesterID, &t.AssignedTeamID, &t.Resolution, &t.CreatedAt, &t.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ticket: %w", err)
	}
	return t, nil
}

func (s *TicketStore) GetTicket(ctx context.Context, id string) (*dto.Ticket, error) {
	return scanTicket(s.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
}

// ListResolvedSince returns resolved tickets with resolved_at >= since,
// oldest first.
func (s *TicketStore) ListResolvedSince(ctx context.Context, since time.Time) ([]dto.Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE status = 'resolved' AND resolved_at >= $1
		 ORDER BY resolved_at`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("listing resolved tickets: %w", err)
	}
	defer rows.Close()

	var tickets []dto.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicketTeam reassigns a ticket. This is the only ticket mutation the
// core performs beyond commentary.
func (s *TicketStore) UpdateTicketTeam(ctx context.Context, ticketID string, teamID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tickets SET assigned_team_id = $2 WHERE id = $1`, ticketID, teamID)
	if err != nil {
		return fmt.Errorf("reassigning ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TicketStore) AddComment(ctx context.Context, comment dto.TicketComment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ticket_comments (ticket_id, author_id, body, automated)
		 VALUES ($1, $2, $3, $4)`,
		comment.TicketID, comment.AuthorID, comment.Body, comment.Automated,
	)
	if err != nil {
		return fmt.Errorf("adding comment: %w", err)
	}
	return nil
}

func (s *TicketStore) ListComments(ctx context.Context, ticketID string) ([]dto.TicketComment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticket_id, author_id, body, automated, created_at
		 FROM ticket_comments WHERE ticket_id = $1 ORDER BY created_at`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []dto.TicketComment
	for rows.Next() {
		var c dto.TicketComment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Body, &c.Automated, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

// UpsertComplexityScore stores the derived score keyed by ticket; last write
// wins.
func (s *TicketStore) UpsertComplexityScore(ctx context.Context, score dto.ComplexityScore) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("marshaling score factors: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO complexity_scores (ticket_id, score, factors, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (ticket_id) DO UPDATE SET
		   score = EXCLUDED.score,
		   factors = EXCLUDED.factors,
		   updated_at = NOW()`,
		score.TicketID, score.Score, factors,
	)
	if err != nil {
		return fmt.Errorf("upserting complexity score: %w", err)
	}
	return nil
}

func (s *TicketStore) GetComplexityScore(ctx context.Context, ticketID string) (*dto.ComplexityScore, error) {
	score := &dto.ComplexityScore{}
	var factors []byte
	err := s.pool.QueryRow(ctx,
		`SELECT ticket_id, score, factors, updated_at FROM complexity_scores WHERE ticket_id = $1`,
		ticketID,
	).Scan(&score.TicketID, &score.Score, &factors, &score.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting complexity score: %w", err)
	}
	if err := json.Unmarshal(factors, &score.Factors); err != nil {
		return nil, fmt.Errorf("unmarshaling score factors: %w", err)
	}
	return score, nil
}

func (s *TicketStore) InsertAutoResponse(ctx context.Context, rec dto.AutoResponseRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auto_responses (ticket_id, response, confidence, applied, escalation_needed)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.TicketID, rec.Response, rec.Confidence, rec.Applied, rec.EscalationNeeded,
	)
	if err != nil {
		return fmt.Errorf("inserting auto response: %w", err)
	}
	return nil
}
