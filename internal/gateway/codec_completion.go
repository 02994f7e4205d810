package gateway

import (
	"encoding/json"
	"fmt"
)

// completionCodec speaks the inputText/results shape used by the Titan text
// family.
type completionCodec struct{}

type completionRequest struct {
	InputText            string               `json:"inputText"`
	TextGenerationConfig textGenerationConfig `json:"textGenerationConfig"`
}

type textGenerationConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
}

type completionResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount int    `json:"tokenCount"`
		OutputText string `json:"outputText"`
	} `json:"results"`
}

func (completionCodec) Encode(prompt string, opts GenerationOptions) ([]byte, error) {
	return json.Marshal(completionRequest{
		InputText: prompt,
		TextGenerationConfig: textGenerationConfig{
			MaxTokenCount: opts.MaxTokens,
			Temperature:   opts.Temperature,
		},
	})
}

func (completionCodec) Decode(raw []byte) (ModelOutput, error) {
	var resp completionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ModelOutput{}, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(resp.Results) == 0 {
		return ModelOutput{}, fmt.Errorf("completion response has no results")
	}

	return ModelOutput{
		Text:         resp.Results[0].OutputText,
		InputTokens:  resp.InputTextTokenCount,
		OutputTokens: resp.Results[0].TokenCount,
	}, nil
}
