package learning

import (
	"context"
	"sync"
	"time"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// MemoryStore is an in-process Store with the same transition rules as the
// database implementation. Used by tests and single-process tooling.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  []*dto.LearningQueueItem
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetClock replaces the store's clock, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Enqueue(_ context.Context, ticketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.TicketID == ticketID &&
			(item.Status == dto.QueuePending || item.Status == dto.QueueProcessing) {
			return false, nil
		}
	}

	s.nextID++
	s.items = append(s.items, &dto.LearningQueueItem{
		ID:        s.nextID,
		TicketID:  ticketID,
		Status:    dto.QueuePending,
		CreatedAt: s.now(),
	})
	return true, nil
}

func (s *MemoryStore) ClaimPending(_ context.Context) ([]dto.LearningQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []dto.LearningQueueItem
	for _, item := range s.items {
		if item.Status == dto.QueuePending {
			item.Status = dto.QueueProcessing
			item.ProcessingAttempts++
			claimed = append(claimed, *item)
		}
	}
	return claimed, nil
}

func (s *MemoryStore) Complete(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, item := range s.items {
		if item.Status == dto.QueueProcessing && contains(ids, item.ID) {
			item.Status = dto.QueueCompleted
			item.ProcessedAt = &now
		}
	}
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, ids []int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, item := range s.items {
		if item.Status == dto.QueueProcessing && contains(ids, item.ID) {
			item.Status = dto.QueueFailed
			item.ProcessedAt = &now
			item.Error = errMsg
		}
	}
	return nil
}

func (s *MemoryStore) RequeueFailed(_ context.Context, maxAttempts int, cooldown time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-cooldown)
	var requeued int64
	for _, item := range s.items {
		if item.Status == dto.QueueFailed &&
			item.ProcessingAttempts < maxAttempts &&
			item.ProcessedAt != nil && item.ProcessedAt.Before(cutoff) {
			item.Status = dto.QueuePending
			item.Error = ""
			requeued++
		}
	}
	return requeued, nil
}

// Get returns the most recent item for a ticket, for assertions in tests.
func (s *MemoryStore) Get(ticketID string) (dto.LearningQueueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].TicketID == ticketID {
			return *s.items[i], true
		}
	}
	return dto.LearningQueueItem{}, false
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
