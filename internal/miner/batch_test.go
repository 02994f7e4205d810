package miner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

func TestBatchSize(t *testing.T) {
	tests := []struct {
		name            string
		budget          int
		reserved        int
		tokensPerTicket int
		want            int
	}{
		{name: "caps at ten", budget: 100_000, reserved: 2000, tokensPerTicket: 700, want: 10},
		{name: "raw thirteen clamps to ten", budget: 2000, reserved: 700, tokensPerTicket: 100, want: 10},
		{name: "floors at two", budget: 2000, reserved: 1900, tokensPerTicket: 700, want: 2},
		{name: "mid range", budget: 5000, reserved: 1500, tokensPerTicket: 700, want: 5},
		{name: "negative budget floors", budget: 100, reserved: 2000, tokensPerTicket: 700, want: 2},
		{name: "zero per-ticket cost floors", budget: 5000, reserved: 1500, tokensPerTicket: 0, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, batchSize(tt.budget, tt.reserved, tt.tokensPerTicket))
		})
	}
}

func TestPlanBatches(t *testing.T) {
	require.Nil(t, planBatches(nil, 3000))

	tickets := make([]dto.Ticket, 25)
	for i := range tickets {
		tickets[i] = dto.Ticket{
			ID:          "T-1",
			Subject:     "printer jam",
			Category:    "hardware",
			Priority:    dto.PriorityLow,
			Resolution:  "cleared the tray",
			Description: "paper stuck in tray two",
		}
	}

	batches := planBatches(tickets, 1_000_000)
	// A huge budget still caps batches at ten tickets.
	total := 0
	for _, batch := range batches {
		require.LessOrEqual(t, len(batch), maxBatchSize)
		total += len(batch)
	}
	require.Equal(t, len(tickets), total)
	require.Len(t, batches, 3)
}
