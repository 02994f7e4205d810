package costgov

import (
	"log/slog"
	"math"
)

// modelPricing is the USD cost per one million tokens.
type modelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// DefaultModelID is the pricing fallback for model ids missing from the
// table. It is the cheapest general-purpose model we route to.
const DefaultModelID = "amazon.titan-text-express-v1"

var pricingTable = map[string]modelPricing{
	"amazon.titan-text-express-v1":              {InputPer1M: 0.80, OutputPer1M: 1.60},
	"amazon.titan-text-lite-v1":                 {InputPer1M: 0.30, OutputPer1M: 0.40},
	"amazon.titan-embed-text-v1":                {InputPer1M: 0.10, OutputPer1M: 0},
	"anthropic.claude-3-haiku-20240307-v1:0":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"anthropic.claude-3-sonnet-20240229-v1:0":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic.claude-3-5-sonnet-20240620-v1:0": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic.claude-v2:1":                     {InputPer1M: 8.00, OutputPer1M: 24.00},
	"meta.llama3-8b-instruct-v1:0":              {InputPer1M: 0.30, OutputPer1M: 0.60},
	"meta.llama3-70b-instruct-v1:0":             {InputPer1M: 2.65, OutputPer1M: 3.50},
}

// pricingFor looks up a model's pricing, falling back to the default model.
// Unknown ids never error; budgeting must work even for models added to the
// router before the table is updated.
func pricingFor(modelID string) modelPricing {
	if p, ok := pricingTable[modelID]; ok {
		return p
	}

	slog.Warn("unknown model id, using default pricing", "model", modelID, "default", DefaultModelID)
	return pricingTable[DefaultModelID]
}

// EstimateTokens approximates the token count of a text as one token per four
// characters, rounded up. Deterministic so budgeting decisions are
// reproducible.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / 4))
}

// EstimateCost returns the estimated USD cost of a call against the price
// table.
func EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	p := pricingFor(modelID)
	return float64(inputTokens)/1_000_000*p.InputPer1M +
		float64(outputTokens)/1_000_000*p.OutputPer1M
}
