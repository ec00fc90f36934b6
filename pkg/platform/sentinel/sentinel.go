// Package sentinel holds the storage facts stores report. Services translate
// them into domain errors; they never reach a transport unwrapped.
package sentinel

import "errors"

var (
	// ErrNotFound means no record exists under the requested key.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a write lost against a concurrent writer: a
	// compare-and-swap saw a different status, or an insert hit an existing key.
	ErrConflict = errors.New("conflict")
)
