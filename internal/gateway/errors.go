package gateway

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means no provider credentials or model id are set. Callers
// degrade gracefully; this is never surfaced to end users.
var ErrNotConfigured = errors.New("model gateway not configured")

// BlockedError is returned when the cost governor refuses a call. The request
// never reaches the provider and nothing is written to the ledger.
type BlockedError struct {
	Reason        string
	EstimatedCost float64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("model call blocked: %s (estimated cost $%.4f)", e.Reason, e.EstimatedCost)
}

// AsBlocked unwraps a BlockedError from err, if present.
func AsBlocked(err error) (*BlockedError, bool) {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return blocked, true
	}
	return nil, false
}

// ProviderError wraps a transport or decode failure from the model provider.
// Callers treat it as a soft failure and substitute defaults.
type ProviderError struct {
	ModelID string
	Op      string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s, model %s): %v", e.Op, e.ModelID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
