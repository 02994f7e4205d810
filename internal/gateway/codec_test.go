package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	tests := []struct {
		modelID string
		want    Codec
	}{
		{modelID: "anthropic.claude-3-haiku-20240307-v1:0", want: chatCodec{}},
		{modelID: "meta.llama3-8b-instruct-v1:0", want: instructCodec{}},
		{modelID: "amazon.titan-text-express-v1", want: completionCodec{}},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			codec, err := codecFor(tt.modelID)
			require.NoError(t, err)
			require.Equal(t, tt.want, codec)
		})
	}

	_, err := codecFor("mistral.mistral-7b-instruct-v0:2")
	require.Error(t, err)
}

func TestChatCodecRoundTrip(t *testing.T) {
	body, err := chatCodec{}.Encode("hello", GenerationOptions{MaxTokens: 100, Temperature: 0.5})
	require.NoError(t, err)

	var req chatRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Equal(t, "bedrock-2023-05-31", req.AnthropicVersion)
	require.Equal(t, 100, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	require.Equal(t, "user", req.Messages[0].Role)
	require.Equal(t, "hello", req.Messages[0].Content[0].Text)

	out, err := chatCodec{}.Decode([]byte(`{
		"content": [{"type": "text", "text": "hi "}, {"type": "text", "text": "there"}],
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`))
	require.NoError(t, err)
	require.Equal(t, "hi there", out.Text)
	require.Equal(t, 12, out.InputTokens)
	require.Equal(t, 7, out.OutputTokens)

	_, err = chatCodec{}.Decode([]byte(`{"content": []}`))
	require.Error(t, err)
}

func TestInstructCodecRoundTrip(t *testing.T) {
	body, err := instructCodec{}.Encode("fix my printer", GenerationOptions{MaxTokens: 200, Temperature: 0.2})
	require.NoError(t, err)

	var req instructRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Equal(t, "<s>[INST] fix my printer [/INST]", req.Prompt)
	require.Equal(t, 200, req.MaxGenLen)

	out, err := instructCodec{}.Decode([]byte(`{
		"generation": "turn it off and on",
		"prompt_token_count": 9,
		"generation_token_count": 6
	}`))
	require.NoError(t, err)
	require.Equal(t, "turn it off and on", out.Text)
	require.Equal(t, 9, out.InputTokens)
	require.Equal(t, 6, out.OutputTokens)

	_, err = instructCodec{}.Decode([]byte(`{}`))
	require.Error(t, err)
}

func TestCompletionCodecRoundTrip(t *testing.T) {
	body, err := completionCodec{}.Encode("summarize", GenerationOptions{MaxTokens: 300, Temperature: 0.7})
	require.NoError(t, err)

	var req completionRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Equal(t, "summarize", req.InputText)
	require.Equal(t, 300, req.TextGenerationConfig.MaxTokenCount)
	require.InDelta(t, 0.7, req.TextGenerationConfig.Temperature, 1e-9)

	out, err := completionCodec{}.Decode([]byte(`{
		"inputTextTokenCount": 3,
		"results": [{"tokenCount": 5, "outputText": "a summary"}]
	}`))
	require.NoError(t, err)
	require.Equal(t, "a summary", out.Text)
	require.Equal(t, 3, out.InputTokens)
	require.Equal(t, 5, out.OutputTokens)

	_, err = completionCodec{}.Decode([]byte(`{"results": []}`))
	require.Error(t, err)
}
