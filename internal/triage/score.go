package triage

import (
	"github.com/deskmind/deskmind/internal/storage/dto"
)

// ComplexityScore derives the 0-100 triage score from an analysis. Pure and
// deterministic: the same analysis always produces the same score.
func ComplexityScore(a TicketAnalysis) (int, dto.ScoreFactors) {
	var f dto.ScoreFactors

	switch a.Complexity {
	case ComplexityLow:
		f.Complexity = 10
	case ComplexityMedium:
		f.Complexity = 30
	case ComplexityHigh:
		f.Complexity = 60
	case ComplexityCritical:
		f.Complexity = 90
	default:
		f.Complexity = 30
	}

	switch a.Priority {
	case dto.PriorityLow:
		f.Priority = 5
	case dto.PriorityMedium:
		f.Priority = 15
	case dto.PriorityHigh:
		f.Priority = 25
	case dto.PriorityUrgent:
		f.Priority = 40
	}

	if a.EstimatedResolutionTime > 24 {
		f.EstimatedTime = 20
	} else if a.EstimatedResolutionTime > 8 {
		f.EstimatedTime = 10
	}

	if a.Confidence < 50 {
		f.Confidence = 15
	} else if a.Confidence < 70 {
		f.Confidence = 10
	}

	score := f.Complexity + f.Priority + f.EstimatedTime + f.Confidence
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, f
}
