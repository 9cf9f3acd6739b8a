// Package domainerrors provides coded errors that services return to callers.
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those facts into coded domain errors here so transport
// layers can map codes to user-facing responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for caller-side mapping.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeExpired            Code = "expired"
	CodeValidation         Code = "validation"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause and carry
// contextual metadata (voucher id, customer id, operation name).
type Error struct {
	Code    Code
	Message string
	Meta    map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithMeta annotates the error with contextual metadata and returns it.
func (e *Error) WithMeta(key, value string) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
	return e
}

// Is reports whether err (or anything it wraps) is a domain error with the
// given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasCode extracts the code from err, or CodeInternal when err is not a
// domain error.
func HasCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
