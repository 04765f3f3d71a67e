package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeAuth: login rejected or the UI changed past recognition.
	// Fatal for the session; the driver terminates rather than loop.
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeTransientUI: element not found, stale reference, layout
	// mismatch. Retried through alternate locate strategies; exhausting
	// them yields an empty round, not a hard failure.
	ErrorTypeTransientUI ErrorType = "transient_ui"

	// ErrorTypeNavigation: a page failed to load or timed out.
	ErrorTypeNavigation ErrorType = "navigation"

	// ErrorTypeRateLimit is carried as a flag in return values rather than
	// raised; the type exists for logging and retry classification.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeStorage: malformed persisted state. Always recovered
	// locally with an empty default, never propagated.
	ErrorTypeStorage ErrorType = "storage"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a typed pipeline error with an optional wrapped cause
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, message string, cause error) *Error {
	return &Error{Type: errorType, Message: message, Cause: cause}
}

// TypeOf extracts the error type, or ErrorTypeUnknown for foreign errors
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsAuth reports whether the error is fatal for the session
func IsAuth(err error) bool {
	return TypeOf(err) == ErrorTypeAuth
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientUI, ErrorTypeNavigation, ErrorTypeRateLimit:
		return true
	case ErrorTypeAuth, ErrorTypeStorage:
		return false
	default:
		return false
	}
}
