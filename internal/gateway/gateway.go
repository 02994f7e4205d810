// Package gateway is the single path to the model provider. Every call is
// vetted by the cost governor before it leaves the process and recorded in
// the usage ledger with actual token counts afterwards.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qri-io/jsonschema"

	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/metrics"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

// Caller-configurable timeout bounds. Anything outside is clamped.
const (
	minTimeout = 5 * time.Second
	maxTimeout = 120 * time.Second
)

// conservativeOutputEstimate caps the output-token estimate used for the
// pre-flight budget check.
const conservativeOutputEstimate = 1000

type Config struct {
	BaseURL        string `split_words:"true"`
	APIKey         string `envconfig:"API_KEY"`
	Model          string `default:"anthropic.claude-3-haiku-20240307-v1:0"`
	EmbeddingModel string `split_words:"true" default:"amazon.titan-embed-text-v1"`
	TimeoutSecs    int    `split_words:"true" default:"30"`
}

// Governor is the budget authority consulted before and after every call.
type Governor interface {
	EstimateTokens(text string) int
	Limits() dto.CostLimits
	ShouldBlock(ctx context.Context, modelID string, estInputTokens, estOutputTokens int, operation string) (costgov.Decision, error)
	RecordUsage(ctx context.Context, p costgov.UsageParams) error
}

// InvokeRequest describes one model call.
type InvokeRequest struct {
	Prompt      string
	Operation   string
	MaxTokens   int
	Temperature float64
	UserID      *string
	TicketID    *string
	Timeout     time.Duration
}

// InvokeResult carries the response text and the actual usage that was
// written to the ledger.
type InvokeResult struct {
	Text         string
	CostEstimate float64
	InputTokens  int
	OutputTokens int
}

type Client struct {
	cfg      Config
	governor Governor
	invoker  ModelInvoker
}

// New builds a gateway client. A missing base URL or model id leaves the
// client unconfigured; calls then return ErrNotConfigured and callers degrade.
func New(cfg Config, governor Governor) *Client {
	return &Client{
		cfg:      cfg,
		governor: governor,
		invoker:  newHTTPInvoker(cfg.BaseURL, cfg.APIKey),
	}
}

// NewWithInvoker is like New with a custom transport, used in tests.
func NewWithInvoker(cfg Config, governor Governor, invoker ModelInvoker) *Client {
	return &Client{cfg: cfg, governor: governor, invoker: invoker}
}

func (c *Client) configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Model != ""
}

// Model returns the configured generation model id.
func (c *Client) Model() string {
	return c.cfg.Model
}

// MaxTokensPerRequest exposes the governor's per-request token ceiling for
// callers that size their own batches.
func (c *Client) MaxTokensPerRequest() int {
	return c.governor.Limits().MaxTokensPerRequest
}

// Invoke runs one budget-vetted model call.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	modelID := c.cfg.Model
	estInput := c.governor.EstimateTokens(req.Prompt)

	// The prompt plus the output allowance must fit under the per-request
	// ceiling; otherwise fail before touching the network or the ledger.
	limits := c.governor.Limits()
	effectiveMaxTokens := min(req.MaxTokens, limits.MaxTokensPerRequest-estInput)
	if effectiveMaxTokens <= 0 {
		metrics.ModelInvocations.WithLabelValues(modelID, req.Operation, "blocked").Inc()
		return nil, &BlockedError{
			Reason:        costgov.ReasonTokenLimit,
			EstimatedCost: costgov.EstimateCost(modelID, estInput, 0),
		}
	}

	estOutput := min(effectiveMaxTokens, conservativeOutputEstimate)
	decision, err := c.governor.ShouldBlock(ctx, modelID, estInput, estOutput, req.Operation)
	if err != nil {
		return nil, fmt.Errorf("budget check: %w", err)
	}
	if decision.Blocked {
		metrics.ModelInvocations.WithLabelValues(modelID, req.Operation, "blocked").Inc()
		return nil, &BlockedError{Reason: decision.Reason, EstimatedCost: decision.EstimatedCost}
	}

	codec, err := codecFor(modelID)
	if err != nil {
		return nil, fmt.Errorf("selecting codec: %w", err)
	}

	body, err := codec.Encode(req.Prompt, GenerationOptions{
		MaxTokens:   effectiveMaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, clampTimeout(req.Timeout, c.cfg.TimeoutSecs))
	defer cancel()

	raw, err := c.invoker.Invoke(callCtx, modelID, body)
	if err != nil {
		metrics.ModelInvocations.WithLabelValues(modelID, req.Operation, "error").Inc()
		return nil, &ProviderError{ModelID: modelID, Op: req.Operation, Err: err}
	}

	out, err := codec.Decode(raw)
	if err != nil {
		metrics.ModelInvocations.WithLabelValues(modelID, req.Operation, "error").Inc()
		return nil, &ProviderError{ModelID: modelID, Op: req.Operation, Err: err}
	}

	// Prefer provider-reported counts, fall back to estimates.
	actualInput := out.InputTokens
	if actualInput == 0 {
		actualInput = estInput
	}
	actualOutput := out.OutputTokens
	if actualOutput == 0 {
		actualOutput = c.governor.EstimateTokens(out.Text)
	}

	if err := c.governor.RecordUsage(ctx, costgov.UsageParams{
		ModelID:      modelID,
		InputTokens:  actualInput,
		OutputTokens: actualOutput,
		Operation:    req.Operation,
		UserID:       req.UserID,
		TicketID:     req.TicketID,
	}); err != nil {
		return nil, fmt.Errorf("recording usage: %w", err)
	}

	metrics.ModelInvocations.WithLabelValues(modelID, req.Operation, "success").Inc()
	return &InvokeResult{
		Text:         out.Text,
		CostEstimate: costgov.EstimateCost(modelID, actualInput, actualOutput),
		InputTokens:  actualInput,
		OutputTokens: actualOutput,
	}, nil
}

// InvokeJSON runs Invoke and validates the response against the provided JSON
// schema, returning the raw JSON payload. Model output wrapped in markdown
// fences is unwrapped first.
func (c *Client) InvokeJSON(ctx context.Context, req InvokeRequest, schema *jsonschema.Schema) (string, error) {
	result, err := c.Invoke(ctx, req)
	if err != nil {
		return "", err
	}

	payload := extractJSON(result.Text)
	if schema != nil {
		keyErrs, err := schema.ValidateBytes(ctx, []byte(payload))
		if err != nil {
			return "", fmt.Errorf("validating model response: %w", err)
		}
		if len(keyErrs) > 0 {
			return "", fmt.Errorf("model response failed validation: %v", keyErrs)
		}
	}

	slog.DebugContext(ctx, "validated JSON model response", "operation", req.Operation, "bytes", len(payload))
	return payload, nil
}

type embeddingRequest struct {
	InputText string `json:"inputText"`
}

type embeddingResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// EmbedText generates an embedding for the text, budget-vetted and ledgered
// like every other call.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if !c.configured() || c.cfg.EmbeddingModel == "" {
		return nil, ErrNotConfigured
	}

	modelID := c.cfg.EmbeddingModel
	estInput := c.governor.EstimateTokens(text)

	decision, err := c.governor.ShouldBlock(ctx, modelID, estInput, 0, dto.OpEmbedding)
	if err != nil {
		return nil, fmt.Errorf("budget check: %w", err)
	}
	if decision.Blocked {
		metrics.ModelInvocations.WithLabelValues(modelID, dto.OpEmbedding, "blocked").Inc()
		return nil, &BlockedError{Reason: decision.Reason, EstimatedCost: decision.EstimatedCost}
	}

	body, err := json.Marshal(embeddingRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, clampTimeout(0, c.cfg.TimeoutSecs))
	defer cancel()

	raw, err := c.invoker.Invoke(callCtx, modelID, body)
	if err != nil {
		metrics.ModelInvocations.WithLabelValues(modelID, dto.OpEmbedding, "error").Inc()
		return nil, &ProviderError{ModelID: modelID, Op: dto.OpEmbedding, Err: err}
	}

	var resp embeddingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.ModelInvocations.WithLabelValues(modelID, dto.OpEmbedding, "error").Inc()
		return nil, &ProviderError{ModelID: modelID, Op: dto.OpEmbedding, Err: err}
	}

	actualInput := resp.InputTextTokenCount
	if actualInput == 0 {
		actualInput = estInput
	}

	if err := c.governor.RecordUsage(ctx, costgov.UsageParams{
		ModelID:     modelID,
		InputTokens: actualInput,
		Operation:   dto.OpEmbedding,
	}); err != nil {
		return nil, fmt.Errorf("recording usage: %w", err)
	}

	metrics.ModelInvocations.WithLabelValues(modelID, dto.OpEmbedding, "success").Inc()
	return resp.Embedding, nil
}

func clampTimeout(requested time.Duration, defaultSecs int) time.Duration {
	timeout := requested
	if timeout == 0 {
		timeout = time.Duration(defaultSecs) * time.Second
	}
	if timeout < minTimeout {
		return minTimeout
	}
	if timeout > maxTimeout {
		return maxTimeout
	}
	return timeout
}

// extractJSON strips markdown code fences some models wrap around JSON
// payloads.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
