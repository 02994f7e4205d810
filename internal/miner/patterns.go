package miner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/deskmind/deskmind/internal/storage/dto"
)

// ResolutionPattern is a recurring problem shape extracted from one mining
// batch. Ephemeral: only patterns that clear the thresholds become articles.
type ResolutionPattern struct {
	ProblemType           string   `json:"problem_type"`
	CommonSolutions       []string `json:"common_solutions"`
	PreventiveMeasures    []string `json:"preventive_measures"`
	Frequency             int      `json:"frequency"`
	AverageResolutionTime float64  `json:"average_resolution_time_hours"`
	SuccessRate           float64  `json:"success_rate"`
}

type patternsPayload struct {
	Patterns []ResolutionPattern `json:"patterns"`
}

var patternsSchema = mustSchema(`{
	"type": "object",
	"required": ["patterns"],
	"properties": {
		"patterns": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["problem_type", "common_solutions", "frequency", "success_rate"],
				"properties": {
					"problem_type": {"type": "string"},
					"common_solutions": {"type": "array", "items": {"type": "string"}},
					"preventive_measures": {"type": "array", "items": {"type": "string"}},
					"frequency": {"type": "integer"},
					"average_resolution_time_hours": {"type": "number"},
					"success_rate": {"type": "number"}
				}
			}
		}
	}
}`)

type articlePayload struct {
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Tags              []string `json:"tags"`
	Difficulty        string   `json:"difficulty"`
	EstimatedReadTime int      `json:"estimated_read_time_minutes"`
	Confidence        float64  `json:"confidence"`
}

var articleSchema = mustSchema(`{
	"type": "object",
	"required": ["title", "content"],
	"properties": {
		"title": {"type": "string"},
		"content": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"difficulty": {"type": "string", "enum": ["beginner", "intermediate", "advanced"]},
		"estimated_read_time_minutes": {"type": "integer"},
		"confidence": {"type": "number"}
	}
}`)

func mustSchema(raw string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(raw), rs); err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return rs
}

const patternPromptSkeleton = `You are analyzing resolved support tickets to find recurring problems and their working fixes. Return a JSON object with this exact shape:

{
  "patterns": [
    {
      "problem_type": "short name of the recurring problem",
      "common_solutions": ["solutions that actually resolved these tickets"],
      "preventive_measures": ["steps that would prevent recurrence"],
      "frequency": 3,
      "average_resolution_time_hours": 6.5,
      "success_rate": 0-100
    }
  ]
}

RULES:
- Report only patterns supported by at least two of the provided tickets
- frequency counts how many provided tickets exhibit the pattern
- success_rate is an integer 0-100 reflecting how reliably the solutions worked
- Base everything strictly on the provided tickets; no invented fixes
- Return {"patterns": []} if no recurring pattern exists
- Return only the JSON object, no surrounding text

Resolved tickets:
`

const articlePromptSkeleton = `You are writing a knowledge-base article from a recurring support pattern. Return a JSON object with this exact shape:

{
  "title": "Actionable, searchable article title",
  "content": "Full article body in Markdown: symptoms, cause, step-by-step fix, prevention",
  "tags": ["topical", "tags"],
  "difficulty": "beginner | intermediate | advanced",
  "estimated_read_time_minutes": 4,
  "confidence": 0-100
}

RULES:
- Cover only what the pattern supports; do not pad with generic advice
- Keep the fix steps concrete and ordered
- confidence is an integer 0-100
- Return only the JSON object, no surrounding text

Pattern:
`

func renderTicket(t dto.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s\n", t.ID)
	fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
	fmt.Fprintf(&b, "Category: %s, Priority: %s\n", t.Category, t.Priority)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.Resolution != "" {
		fmt.Fprintf(&b, "Resolution: %s\n", t.Resolution)
	}
	b.WriteString("\n")
	return b.String()
}

func buildPatternPrompt(tickets []dto.Ticket) string {
	var b strings.Builder
	b.WriteString(patternPromptSkeleton)
	for _, t := range tickets {
		b.WriteString(renderTicket(t))
	}
	return b.String()
}

func buildArticlePrompt(pattern ResolutionPattern) string {
	var b strings.Builder
	b.WriteString(articlePromptSkeleton)
	fmt.Fprintf(&b, "Problem: %s\n", pattern.ProblemType)
	fmt.Fprintf(&b, "Solutions:\n- %s\n", strings.Join(pattern.CommonSolutions, "\n- "))
	if len(pattern.PreventiveMeasures) > 0 {
		fmt.Fprintf(&b, "Prevention:\n- %s\n", strings.Join(pattern.PreventiveMeasures, "\n- "))
	}
	fmt.Fprintf(&b, "Seen in %d tickets, average resolution %.1f hours, success rate %.0f%%\n",
		pattern.Frequency, pattern.AverageResolutionTime, pattern.SuccessRate)
	return b.String()
}
