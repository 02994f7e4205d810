package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// chatCodec speaks the messages-array shape used by the Claude family.
type chatCodec struct{}

type chatRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	Messages         []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content []chatBlock `json:"content"`
}

type chatBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Content []chatBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (chatCodec) Encode(prompt string, opts GenerationOptions) ([]byte, error) {
	return json.Marshal(chatRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
		Messages: []chatMessage{
			{Role: "user", Content: []chatBlock{{Type: "text", Text: prompt}}},
		},
	})
}

func (chatCodec) Decode(raw []byte) (ModelOutput, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ModelOutput{}, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Content) == 0 {
		return ModelOutput{}, fmt.Errorf("chat response has no content blocks")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return ModelOutput{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
