// Package internal wires ticket lifecycle events into the background job
// layer.
package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/deskmind/deskmind/internal/background"
	"github.com/deskmind/deskmind/internal/learning"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

type Service struct {
	riverClient *river.Client[pgx.Tx]
	queue       *learning.Queue
}

func NewService(riverClient *river.Client[pgx.Tx], queue *learning.Queue) *Service {
	return &Service{
		riverClient: riverClient,
		queue:       queue,
	}
}

// OnTicketCreated schedules triage for a new ticket.
func (s *Service) OnTicketCreated(ctx context.Context, ticketID string) error {
	if ticketID == "" {
		return fmt.Errorf("ticket created: empty ticket id")
	}

	if _, err := s.riverClient.Insert(ctx, background.TriageArgs{TicketID: ticketID}, nil); err != nil {
		return fmt.Errorf("scheduling triage for ticket %s: %w", ticketID, err)
	}
	return nil
}

// OnTicketResolved registers a resolved ticket for pattern mining. Tickets
// resolved without a written resolution carry no signal and are skipped.
func (s *Service) OnTicketResolved(ctx context.Context, ticket *dto.Ticket) error {
	if ticket.Status != dto.TicketStatusResolved {
		return fmt.Errorf("ticket %s is not resolved", ticket.ID)
	}
	if ticket.Resolution == "" {
		return nil
	}

	return s.queue.Enqueue(ctx, ticket.ID)
}
