package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeConnection      ErrorType = "connection"
	ErrorTypeServiceNotBound ErrorType = "service_not_bound"
	ErrorTypeBridgeBusy      ErrorType = "bridge_busy"
	ErrorTypeCancelled       ErrorType = "cancelled"
	ErrorTypeFailed          ErrorType = "failed"
	ErrorTypeInternal        ErrorType = "internal"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeConfiguration   ErrorType = "configuration"
)

// TerminalError is the base error type for all cardlink errors
type TerminalError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
	// Outcome holds the classified transaction outcome for cancelled and failed errors.
	Outcome any
}

// Error implements the error interface
func (e *TerminalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *TerminalError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *TerminalError) WithContext(key string, value any) *TerminalError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithOutcome attaches a transaction outcome to the error
func (e *TerminalError) WithOutcome(outcome any) *TerminalError {
	e.Outcome = outcome
	return e
}

// New creates a new TerminalError
func New(errorType ErrorType, message string) *TerminalError {
	return &TerminalError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errorType ErrorType, message string) *TerminalError {
	return &TerminalError{
		Type:    errorType,
		Message: message,
		Cause:   err,
		Context: make(map[string]any),
	}
}

// TypeOf returns the type of the first TerminalError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var te *TerminalError
	if stderrors.As(err, &te) {
		return te.Type
	}
	return ""
}

// IsType reports whether err carries a TerminalError of the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// Connection creates a bind/unbind error
func Connection(message string, cause error) *TerminalError {
	return Wrap(cause, ErrorTypeConnection, message)
}

// ServiceNotBound creates an error for a submission without a usable connection
func ServiceNotBound(cause error) *TerminalError {
	return Wrap(cause, ErrorTypeServiceNotBound, "terminal service is not bound")
}

// BridgeBusy creates an error for a submission while another transaction is outstanding
func BridgeBusy() *TerminalError {
	return New(ErrorTypeBridgeBusy, "another transaction is outstanding")
}

// Cancelled creates a user-cancelled transaction error
func Cancelled(reason string) *TerminalError {
	return New(ErrorTypeCancelled, reason)
}

// Failed creates a terminal or business failure error
func Failed(message string) *TerminalError {
	return New(ErrorTypeFailed, message)
}

// Internal creates an internal error
func Internal(message string, cause error) *TerminalError {
	return Wrap(cause, ErrorTypeInternal, message)
}

// Validation creates a validation error
func Validation(message string) *TerminalError {
	return New(ErrorTypeValidation, message)
}

// Configuration creates a configuration error
func Configuration(message string) *TerminalError {
	return New(ErrorTypeConfiguration, message)
}

// Timeout creates a timeout error
func Timeout(operation string) *TerminalError {
	return New(ErrorTypeTimeout, fmt.Sprintf("operation %s timed out", operation))
}
