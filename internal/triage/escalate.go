package triage

import (
	"github.com/deskmind/deskmind/internal/storage/dto"
)

// lowConfidenceThreshold is the confidence below which a run always
// escalates, whatever the apply-gate threshold is set to.
const lowConfidenceThreshold = 50

// ShouldEscalate is the base escalation rule: any single trigger routes the
// ticket to a human.
func ShouldEscalate(a TicketAnalysis, r *AutoResponse) bool {
	if a.Complexity == ComplexityCritical {
		return true
	}
	if a.Priority == dto.PriorityUrgent {
		return true
	}
	if a.Confidence < lowConfidenceThreshold {
		return true
	}
	if a.EstimatedResolutionTime > 48 {
		return true
	}
	if r != nil {
		if r.Confidence < lowConfidenceThreshold {
			return true
		}
		if r.EscalationNeeded {
			return true
		}
	}
	return false
}
