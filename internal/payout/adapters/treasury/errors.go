// Package treasury provides Treasury implementations: an HTTP client for a
// remote custody service and an in-process simulation.
package treasury

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes treasury failures.
type ErrorCategory string

const (
	ErrorTimeout     ErrorCategory = "timeout"
	ErrorUnavailable ErrorCategory = "unavailable"
	ErrorRejected    ErrorCategory = "rejected"
	ErrorBadResponse ErrorCategory = "bad_response"
)

// ErrCircuitOpen is returned without contacting the treasury while the
// breaker is open.
var ErrCircuitOpen = errors.New("treasury circuit open")

// TransferError describes a transfer that did not settle.
type TransferError struct {
	Category   ErrorCategory
	StatusCode int
	Message    string
	Underlying error
}

func (e *TransferError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("treasury [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("treasury [%s]: %s", e.Category, e.Message)
}

func (e *TransferError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether retrying the same transfer may succeed.
func IsRetryable(err error) bool {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Category != ErrorRejected
	}
	return false
}
