package triage

import (
	"fmt"
	"strings"

	"github.com/deskmind/deskmind/internal/knowledge"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

const analysisPrompt = `You are a support-ticket triage analyst. Analyze the ticket below and return a JSON object with these exact fields:

{
  "complexity": "low | medium | high | critical",
  "category": "the best-fitting support category for this ticket",
  "priority": "low | medium | high | urgent",
  "estimated_resolution_time_hours": 4,
  "tags": ["short", "topical", "tags"],
  "confidence": 0-100,
  "reasoning": "One or two sentences explaining the classification"
}

RULES:
- Base the classification only on the ticket content provided
- complexity reflects how hard the issue is to resolve, not how urgent it is
- priority reflects business urgency; keep the ticket's stated priority unless the content clearly contradicts it
- confidence is an integer on a 0-100 scale
- Return only the JSON object, no surrounding text

Example:
{
  "complexity": "medium",
  "category": "billing",
  "priority": "high",
  "estimated_resolution_time_hours": 6,
  "tags": ["invoice", "double-charge"],
  "confidence": 85,
  "reasoning": "Duplicate charge reports are a known billing workflow with an established refund path."
}`

const responsePrompt = `You are a support agent drafting a first response to a ticket. Use only the knowledge-base excerpts provided; do not invent facts. Return a JSON object with these exact fields:

{
  "response": "The full response text to post to the ticket",
  "confidence": 0-100,
  "knowledge_base_articles": ["titles of the excerpts you actually used"],
  "follow_up_actions": ["concrete next steps, if any"],
  "escalation_needed": false
}

RULES:
- Ground every claim in the provided excerpts; if they do not cover the issue, say so, lower the confidence, and set escalation_needed to true
- Be concise, direct, and polite; address the requester's actual question
- confidence is an integer on a 0-100 scale reflecting how well the excerpts cover the issue
- Return only the JSON object, no surrounding text`

func buildAnalysisPrompt(ticket *dto.Ticket) string {
	var b strings.Builder
	b.WriteString(analysisPrompt)
	b.WriteString("\n\nTicket:\n")
	fmt.Fprintf(&b, "Subject: %s\n", ticket.Subject)
	fmt.Fprintf(&b, "Category: %s\n", ticket.Category)
	fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
	fmt.Fprintf(&b, "Description:\n%s\n", ticket.Description)
	return b.String()
}

func buildResponsePrompt(ticket *dto.Ticket, analysis TicketAnalysis, snippets []knowledge.Snippet) string {
	var b strings.Builder
	b.WriteString(responsePrompt)
	b.WriteString("\n\nTicket:\n")
	fmt.Fprintf(&b, "Subject: %s\n", ticket.Subject)
	fmt.Fprintf(&b, "Description:\n%s\n", ticket.Description)
	fmt.Fprintf(&b, "\nTriage classification: complexity=%s, category=%s, priority=%s\n",
		analysis.Complexity, analysis.Category, analysis.Priority)

	b.WriteString("\nKnowledge-base excerpts:\n")
	if len(snippets) == 0 {
		b.WriteString("(none found)\n")
	}
	for i, s := range snippets {
		fmt.Fprintf(&b, "--- Excerpt %d: %s ---\n%s\n", i+1, s.Title, s.Content)
	}
	return b.String()
}
