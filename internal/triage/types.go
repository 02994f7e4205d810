package triage

import (
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
)

// Complexity levels a ticket analysis can report.
const (
	ComplexityLow      = "low"
	ComplexityMedium   = "medium"
	ComplexityHigh     = "high"
	ComplexityCritical = "critical"
)

// TicketAnalysis is the schema-validated model output of the analyze stage.
// Confidence is on the canonical 0-100 scale.
type TicketAnalysis struct {
	Complexity              string   `json:"complexity"`
	Category                string   `json:"category"`
	Priority                string   `json:"priority"`
	EstimatedResolutionTime float64  `json:"estimated_resolution_time_hours"`
	Tags                    []string `json:"tags"`
	Confidence              float64  `json:"confidence"`
	Reasoning               string   `json:"reasoning"`
}

// AutoResponse is the schema-validated model output of the response stage.
type AutoResponse struct {
	Response              string   `json:"response"`
	Confidence            float64  `json:"confidence"`
	KnowledgeBaseArticles []string `json:"knowledge_base_articles"`
	FollowUpActions       []string `json:"follow_up_actions"`
	EscalationNeeded      bool     `json:"escalation_needed"`
}

var analysisSchema = mustSchema(`{
	"type": "object",
	"required": ["complexity", "category", "priority", "confidence"],
	"properties": {
		"complexity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
		"category": {"type": "string"},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"estimated_resolution_time_hours": {"type": "number"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number"},
		"reasoning": {"type": "string"}
	}
}`)

var responseSchema = mustSchema(`{
	"type": "object",
	"required": ["response", "confidence"],
	"properties": {
		"response": {"type": "string"},
		"confidence": {"type": "number"},
		"knowledge_base_articles": {"type": "array", "items": {"type": "string"}},
		"follow_up_actions": {"type": "array", "items": {"type": "string"}},
		"escalation_needed": {"type": "boolean"}
	}
}`)

func mustSchema(raw string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(raw), rs); err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return rs
}

// normalizeConfidence converts to the canonical 0-100 scale. Models sometimes
// return a 0-1 fraction; anything at or below 1 is treated as one and scaled.
func normalizeConfidence(v float64) int {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

func decodeAnalysis(payload string) (TicketAnalysis, error) {
	var a TicketAnalysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return a, fmt.Errorf("unmarshaling analysis: %w", err)
	}
	a.Confidence = float64(normalizeConfidence(a.Confidence))
	return a, nil
}

func decodeResponse(payload string) (AutoResponse, error) {
	var r AutoResponse
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return r, fmt.Errorf("unmarshaling auto response: %w", err)
	}
	r.Confidence = float64(normalizeConfidence(r.Confidence))
	return r, nil
}
