package gateway

import (
	"encoding/json"
	"fmt"
)

// instructCodec speaks the instruction-wrapped prompt shape used by the Llama
// family.
type instructCodec struct{}

type instructRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
}

type instructResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
}

func (instructCodec) Encode(prompt string, opts GenerationOptions) ([]byte, error) {
	return json.Marshal(instructRequest{
		Prompt:      fmt.Sprintf("<s>[INST] %s [/INST]", prompt),
		MaxGenLen:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
}

func (instructCodec) Decode(raw []byte) (ModelOutput, error) {
	var resp instructResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ModelOutput{}, fmt.Errorf("decoding instruct response: %w", err)
	}
	if resp.Generation == "" {
		return ModelOutput{}, fmt.Errorf("instruct response has no generation")
	}

	return ModelOutput{
		Text:         resp.Generation,
		InputTokens:  resp.PromptTokenCount,
		OutputTokens: resp.GenerationTokenCount,
	}, nil
}
