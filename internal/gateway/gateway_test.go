package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/qri-io/jsonschema"
	"github.com/stretchr/testify/require"

	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

type fakeGovernor struct {
	limits   dto.CostLimits
	decision costgov.Decision
	recorded []costgov.UsageParams
}

func newFakeGovernor() *fakeGovernor {
	return &fakeGovernor{
		limits: dto.CostLimits{
			DailyLimitUSD:       3,
			MonthlyLimitUSD:     25,
			MaxTokensPerRequest: 3000,
			MaxRequestsPerDay:   1500,
			MaxRequestsPerHour:  300,
			IsFreeTierAccount:   true,
		},
	}
}

func (f *fakeGovernor) EstimateTokens(text string) int {
	return costgov.EstimateTokens(text)
}

func (f *fakeGovernor) Limits() dto.CostLimits {
	return f.limits
}

func (f *fakeGovernor) ShouldBlock(ctx context.Context, modelID string, estInputTokens, estOutputTokens int, operation string) (costgov.Decision, error) {
	return f.decision, nil
}

func (f *fakeGovernor) RecordUsage(ctx context.Context, p costgov.UsageParams) error {
	f.recorded = append(f.recorded, p)
	return nil
}

type fakeInvoker struct {
	response []byte
	err      error
	calls    int
	lastBody []byte
}

func (f *fakeInvoker) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	f.calls++
	f.lastBody = body
	return f.response, f.err
}

func testClient(governor Governor, invoker ModelInvoker) *Client {
	return NewWithInvoker(Config{
		BaseURL:        "http://localhost:8008",
		Model:          "anthropic.claude-3-haiku-20240307-v1:0",
		EmbeddingModel: "amazon.titan-embed-text-v1",
		TimeoutSecs:    30,
	}, governor, invoker)
}

func chatResponseJSON(text string, inputTokens, outputTokens int) []byte {
	return fmt.Appendf(nil, `{
		"content": [{"type": "text", "text": %q}],
		"usage": {"input_tokens": %d, "output_tokens": %d}
	}`, text, inputTokens, outputTokens)
}

func TestInvokeNotConfigured(t *testing.T) {
	client := NewWithInvoker(Config{}, newFakeGovernor(), &fakeInvoker{})

	_, err := client.Invoke(context.Background(), InvokeRequest{Prompt: "hi"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestInvokeRecordsActualUsage(t *testing.T) {
	governor := newFakeGovernor()
	invoker := &fakeInvoker{response: chatResponseJSON("answer", 42, 17)}
	client := testClient(governor, invoker)

	result, err := client.Invoke(context.Background(), InvokeRequest{
		Prompt:    "what is the wifi password",
		Operation: dto.OpTriageAnalysis,
		MaxTokens: 500,
	})
	require.NoError(t, err)
	require.Equal(t, "answer", result.Text)
	require.Equal(t, 42, result.InputTokens)
	require.Equal(t, 17, result.OutputTokens)

	require.Len(t, governor.recorded, 1)
	require.Equal(t, 42, governor.recorded[0].InputTokens)
	require.Equal(t, 17, governor.recorded[0].OutputTokens)
	require.Equal(t, dto.OpTriageAnalysis, governor.recorded[0].Operation)
}

func TestInvokeFallsBackToEstimates(t *testing.T) {
	governor := newFakeGovernor()
	// Provider reports no token counts.
	invoker := &fakeInvoker{response: chatResponseJSON("four char text in response", 0, 0)}
	client := testClient(governor, invoker)

	prompt := "estimate me"
	result, err := client.Invoke(context.Background(), InvokeRequest{
		Prompt:    prompt,
		Operation: dto.OpTriageAnalysis,
		MaxTokens: 500,
	})
	require.NoError(t, err)
	require.Equal(t, costgov.EstimateTokens(prompt), result.InputTokens)
	require.Equal(t, costgov.EstimateTokens("four char text in response"), result.OutputTokens)
}

func TestInvokeBlockedByGovernor(t *testing.T) {
	governor := newFakeGovernor()
	governor.decision = costgov.Decision{
		Blocked:       true,
		Reason:        costgov.ReasonDailyCost,
		EstimatedCost: 0.42,
	}
	invoker := &fakeInvoker{response: chatResponseJSON("never", 1, 1)}
	client := testClient(governor, invoker)

	_, err := client.Invoke(context.Background(), InvokeRequest{
		Prompt:    "pricey",
		Operation: dto.OpTriageAnalysis,
		MaxTokens: 500,
	})
	blocked, ok := AsBlocked(err)
	require.True(t, ok)
	require.Equal(t, costgov.ReasonDailyCost, blocked.Reason)
	require.InDelta(t, 0.42, blocked.EstimatedCost, 1e-9)

	// A blocked call never reaches the provider or the ledger.
	require.Zero(t, invoker.calls)
	require.Empty(t, governor.recorded)
}

func TestInvokePromptOverTokenCeiling(t *testing.T) {
	governor := newFakeGovernor()
	governor.limits.MaxTokensPerRequest = 10
	invoker := &fakeInvoker{response: chatResponseJSON("never", 1, 1)}
	client := testClient(governor, invoker)

	_, err := client.Invoke(context.Background(), InvokeRequest{
		Prompt:    "this prompt is far too long for a ten token ceiling",
		Operation: dto.OpTriageAnalysis,
		MaxTokens: 500,
	})
	blocked, ok := AsBlocked(err)
	require.True(t, ok)
	require.Equal(t, costgov.ReasonTokenLimit, blocked.Reason)
	require.Zero(t, invoker.calls)
}

func TestInvokeProviderFailure(t *testing.T) {
	governor := newFakeGovernor()
	invoker := &fakeInvoker{err: fmt.Errorf("connection refused")}
	client := testClient(governor, invoker)

	_, err := client.Invoke(context.Background(), InvokeRequest{
		Prompt:    "hi",
		Operation: dto.OpTriageAnalysis,
		MaxTokens: 500,
	})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Empty(t, governor.recorded)
}

func TestInvokeJSONStripsFences(t *testing.T) {
	governor := newFakeGovernor()
	invoker := &fakeInvoker{response: chatResponseJSON("```json\n{\"ok\": true}\n```", 5, 5)}
	client := testClient(governor, invoker)

	payload, err := client.InvokeJSON(context.Background(), InvokeRequest{
		Prompt:    "json please",
		Operation: dto.OpTriageAnalysis,
		MaxTokens: 500,
	}, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok": true}`, payload)
}

func TestInvokeJSONSchemaViolation(t *testing.T) {
	governor := newFakeGovernor()
	invoker := &fakeInvoker{response: chatResponseJSON(`{"confidence": 90}`, 5, 5)}
	client := testClient(governor, invoker)

	schema := &jsonschema.Schema{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "object",
		"required": ["response"],
		"properties": {"response": {"type": "string"}}
	}`), schema))

	_, err := client.InvokeJSON(context.Background(), InvokeRequest{
		Prompt:    "json please",
		Operation: dto.OpAutoResponse,
		MaxTokens: 500,
	}, schema)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed validation")
	require.NotContains(t, err.Error(), "%!w")
}

func TestEmbedText(t *testing.T) {
	governor := newFakeGovernor()
	invoker := &fakeInvoker{response: []byte(`{"embedding": [0.1, 0.2, 0.3], "inputTextTokenCount": 4}`)}
	client := testClient(governor, invoker)

	embedding, err := client.EmbedText(context.Background(), "printer troubleshooting")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)

	require.Len(t, governor.recorded, 1)
	require.Equal(t, dto.OpEmbedding, governor.recorded[0].Operation)
	require.Equal(t, 4, governor.recorded[0].InputTokens)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "plain fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "surrounding whitespace", in: "  {\"a\": 1}\n", want: `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestClampTimeout(t *testing.T) {
	require.Equal(t, minTimeout, clampTimeout(1, 30))
	require.Equal(t, maxTimeout, clampTimeout(maxTimeout+1, 30))
	require.Equal(t, minTimeout, clampTimeout(0, 1))
	require.Equal(t, maxTimeout, clampTimeout(0, 600))
}
