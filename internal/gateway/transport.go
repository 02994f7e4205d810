package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ModelInvoker posts an already-encoded request body to the provider endpoint
// for a model and returns the raw response body. Implemented over HTTP in
// production and faked in tests.
type ModelInvoker interface {
	Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

type httpInvoker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newHTTPInvoker(baseURL, apiKey string) *httpInvoker {
	return &httpInvoker{
		baseURL: baseURL,
		apiKey:  apiKey,
		// Per-call deadlines come from the request context; no client-wide
		// timeout on top.
		client: &http.Client{},
	}
}

func (h *httpInvoker) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/model/%s/invoke", h.baseURL, url.PathEscape(modelID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncateForLog(raw))
	}

	return raw, nil
}

func truncateForLog(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
