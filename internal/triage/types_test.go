package triage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int
	}{
		{name: "already canonical", in: 85, want: 85},
		{name: "fraction scales", in: 0.85, want: 85},
		{name: "exactly one is a fraction", in: 1, want: 100},
		{name: "zero stays zero", in: 0, want: 0},
		{name: "negative clamps", in: -5, want: 0},
		{name: "over scale clamps", in: 150, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, normalizeConfidence(tt.in))
		})
	}
}

func TestDecodeAnalysis(t *testing.T) {
	analysis, err := decodeAnalysis(`{
		"complexity": "high",
		"category": "network",
		"priority": "high",
		"estimated_resolution_time_hours": 4,
		"confidence": 0.9,
		"reasoning": "vpn outage"
	}`)
	require.NoError(t, err)
	require.Equal(t, ComplexityHigh, analysis.Complexity)
	require.Equal(t, float64(90), analysis.Confidence)

	_, err = decodeAnalysis(`not json`)
	require.Error(t, err)
}

func TestDecodeResponse(t *testing.T) {
	response, err := decodeResponse(`{
		"response": "restart the router",
		"confidence": 75,
		"escalation_needed": false
	}`)
	require.NoError(t, err)
	require.Equal(t, "restart the router", response.Response)
	require.Equal(t, float64(75), response.Confidence)
	require.False(t, response.EscalationNeeded)
}
