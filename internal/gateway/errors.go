package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for gateway operations. Check with errors.Is.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTimeout is returned when a model call exceeds its latency budget.
	ErrTimeout = errors.New("model call timed out")
)

// ProviderError wraps a model provider failure with its transience
// classification. Transient errors are retry candidates; permanent errors
// fail the call immediately.
type ProviderError struct {
	Op        string // "generate" or "stream"
	Attempts  int    // attempts consumed before giving up
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s provider error after %d attempt(s): %v", e.Op, kind, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
