package triage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

func TestShouldEscalate(t *testing.T) {
	confident := func() TicketAnalysis {
		return TicketAnalysis{
			Complexity:              ComplexityLow,
			Priority:                dto.PriorityLow,
			EstimatedResolutionTime: 2,
			Confidence:              90,
		}
	}

	tests := []struct {
		name     string
		analysis TicketAnalysis
		response *AutoResponse
		want     bool
	}{
		{
			name:     "clean run does not escalate",
			analysis: confident(),
			response: &AutoResponse{Confidence: 90},
			want:     false,
		},
		{
			name: "critical complexity alone escalates",
			analysis: func() TicketAnalysis {
				a := confident()
				a.Complexity = ComplexityCritical
				return a
			}(),
			response: &AutoResponse{Confidence: 90},
			want:     true,
		},
		{
			name: "urgent priority escalates",
			analysis: func() TicketAnalysis {
				a := confident()
				a.Priority = dto.PriorityUrgent
				return a
			}(),
			want: true,
		},
		{
			name: "low analysis confidence escalates",
			analysis: func() TicketAnalysis {
				a := confident()
				a.Confidence = 49
				return a
			}(),
			want: true,
		},
		{
			name: "long resolution time escalates",
			analysis: func() TicketAnalysis {
				a := confident()
				a.EstimatedResolutionTime = 49
				return a
			}(),
			want: true,
		},
		{
			name:     "low response confidence escalates",
			analysis: confident(),
			response: &AutoResponse{Confidence: 40},
			want:     true,
		},
		{
			name:     "model-requested escalation",
			analysis: confident(),
			response: &AutoResponse{Confidence: 90, EscalationNeeded: true},
			want:     true,
		},
		{
			name:     "nil response checks only the analysis",
			analysis: confident(),
			response: nil,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ShouldEscalate(tt.analysis, tt.response))
		})
	}
}
