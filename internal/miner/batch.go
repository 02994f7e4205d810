package miner

import (
	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

// Batch size bounds. At least two tickets are needed for a pattern; more than
// ten adds context without improving detection.
const (
	minBatchSize = 2
	maxBatchSize = 10
)

// outputReserveTokens is the allowance kept for the model's response on top
// of the prompt skeleton.
const outputReserveTokens = 500

// batchSize computes how many tickets fit in one mining call: the token
// budget minus the reserved skeleton+output allowance, divided by the
// estimated per-ticket cost, clamped to [2, 10].
func batchSize(budget, reserved, tokensPerTicket int) int {
	if tokensPerTicket <= 0 {
		return minBatchSize
	}

	available := budget - reserved
	size := available / tokensPerTicket
	if size < minBatchSize {
		return minBatchSize
	}
	if size > maxBatchSize {
		return maxBatchSize
	}
	return size
}

// planBatches sizes batches against the per-request token budget using the
// first ticket as the per-ticket sample, then chunks the tickets.
func planBatches(tickets []dto.Ticket, budget int) [][]dto.Ticket {
	if len(tickets) == 0 {
		return nil
	}

	reserved := costgov.EstimateTokens(patternPromptSkeleton) + outputReserveTokens
	tokensPerTicket := costgov.EstimateTokens(renderTicket(tickets[0]))
	size := batchSize(budget, reserved, tokensPerTicket)

	var batches [][]dto.Ticket
	for start := 0; start < len(tickets); start += size {
		end := min(start+size, len(tickets))
		batches = append(batches, tickets[start:end])
	}
	return batches
}
