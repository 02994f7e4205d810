package dto

import (
	"encoding/json"
	"fmt"
	"time"
)

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

func (s *QueueStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch QueueStatus(raw) {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		*s = QueueStatus(raw)
	default:
		return fmt.Errorf("unknown queue status: %s", raw)
	}

	return nil
}

// LearningQueueItem is one resolved ticket waiting for pattern mining.
// Status only moves pending -> processing -> {completed, failed}; failed is
// terminal until an explicit re-enqueue.
type LearningQueueItem struct {
	ID                 int64       `json:"id"`
	TicketID           string      `json:"ticket_id"`
	Status             QueueStatus `json:"status"`
	ProcessingAttempts int         `json:"processing_attempts"`
	ProcessedAt        *time.Time  `json:"processed_at,omitempty"`
	Error              string      `json:"error,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}
