// Package domainerrors carries the error taxonomy shared by services and transports.
//
// Services return *Error values built with New or Wrap. Transports inspect the
// Code (HasCode, CodeOf) to pick a status; the Message is safe to show to callers
// for every code except CodeInternal.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure independently of any transport.
type Code string

const (
	CodeUnauthorized   Code = "unauthorized"
	CodeForbidden      Code = "forbidden"
	CodeNotFound       Code = "not_found"
	CodeInvalidState   Code = "invalid_state"
	CodeExpired        Code = "expired"
	CodeAmountMismatch Code = "amount_mismatch"
	CodeAlreadyPaid    Code = "already_paid"
	CodeTransferFailed Code = "transfer_failed"
	CodeValidation     Code = "validation_error"
	CodeBadRequest     Code = "bad_request"
	CodeConflict       Code = "conflict"
	CodeTimeout        Code = "timeout"
	CodeInternal       Code = "internal_error"

	// CodeInvariantViolation is raised by model constructors. Services convert it
	// to CodeValidation or CodeInvalidState before it reaches a transport.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost domain code in the chain, or CodeInternal when
// the error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost domain error in the chain has the code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is shorthand for HasCode kept for handler call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
