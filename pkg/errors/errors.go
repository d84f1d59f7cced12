// Package errors defines the coded error types used across the keywheel
// service. Domain failures form a closed set of sentinel errors that callers
// match with errors.Is; everything else is wrapped with a code so transport
// and storage causes stay reachable through the error chain.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that switch on failure kind.
type Code string

const (
	// CodeInvalidArgument indicates a caller-supplied argument is invalid.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "internal"
	// CodeNotFound indicates a requested record does not exist.
	CodeNotFound Code = "not_found"
	// CodeUnavailable indicates a backing store could not be reached.
	CodeUnavailable Code = "unavailable"

	// CodePrivateKeyMissing indicates signing was attempted with no active key.
	CodePrivateKeyMissing Code = "private_key_missing"
	// CodeKeyMissing indicates a key id resolved to no public key anywhere.
	CodeKeyMissing Code = "key_missing"
	// CodeKeyIDMissing indicates a token header carried no key id at all.
	CodeKeyIDMissing Code = "key_id_missing"
	// CodeUnsupportedAlgorithm indicates a signing algorithm the key
	// generator does not implement. This is a configuration error.
	CodeUnsupportedAlgorithm Code = "unsupported_algorithm"
)

// AppError is a coded error with an optional cause.
type AppError struct {
	code    Code
	message string
	cause   error
}

// New creates a new AppError with the given code and message.
func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{code: code, message: message, cause: err}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Code returns the error's classification code.
func (e *AppError) Code() Code {
	return e.code
}

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError carrying the same code, which
// makes the sentinels below usable with errors.Is even when a cause has
// been attached via WithCause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.code == e.code
}

// WithCause returns a copy of the error with the given cause attached.
// Sentinels are never mutated in place.
func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{code: e.code, message: e.message, cause: cause}
}

// Sentinel errors for the domain failure modes. Callers translate these
// into user-facing authentication failures; none of them is transient.
var (
	// ErrPrivateKeyMissing is returned when signing is attempted before
	// the first rotation has installed an active key.
	ErrPrivateKeyMissing = New(CodePrivateKeyMissing, "no active signing key")

	// ErrKeyIDMissing is returned when a token header carries no kid.
	ErrKeyIDMissing = New(CodeKeyIDMissing, "token header has no key id")

	// ErrKeyMissing is returned when a kid cannot be resolved to a public
	// key through the active key, the cache, or the registry.
	ErrKeyMissing = New(CodeKeyMissing, "no public key found for key id")

	// ErrRecordNotFound is returned by registry backends when no record
	// exists for a namespace and key id.
	ErrRecordNotFound = New(CodeNotFound, "key record not found")

	// ErrUnsupportedAlgorithm is returned by the key generator for an
	// algorithm name it does not implement.
	ErrUnsupportedAlgorithm = New(CodeUnsupportedAlgorithm, "unsupported signing algorithm")
)

// CodeOf extracts the code from an error chain, or CodeInternal when the
// chain carries no AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return CodeInternal
}

// IsNotFound reports whether the error chain carries a not-found code.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// Is reports whether any error in err's chain matches target. It mirrors
// the standard library so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
