package toolkit

import (
	"errors"
	"fmt"
)

// Code identifies a toolkit failure class. Callers branch on the code, never
// on the message text.
type Code string

const (
	// CodeSafetyBlock means a safety-gate precondition failed. Retrying the same
	// request cannot succeed; the caller must change the request.
	CodeSafetyBlock Code = "SAFETY_BLOCK"
	// CodeConcurrencyLimit means no execution slot available. Retry later.
	CodeConcurrencyLimit Code = "CONCURRENCY_LIMIT"
	// CodeInvalidRunID means the report writer rejected the run identifier.
	CodeInvalidRunID Code = "INVALID_RUN_ID"
	// CodeValidation means the request DTO failed field validation.
	CodeValidation Code = "VALIDATION"
	// CodeHandlerFailed means the business handler returned an untyped error.
	CodeHandlerFailed Code = "HANDLER_FAILED"
)

// Error is the uniform failure type for toolkit commands.
type Error struct {
	Code     Code
	Message  string
	ExitCode int
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Recoverable reports whether retrying the same request could plausibly
// succeed.
func (e *Error) Recoverable() bool {
	return e.Code == CodeConcurrencyLimit
}

// SafetyBlock builds a non-recoverable safety-gate violation.
func SafetyBlock(message string) *Error {
	return &Error{Code: CodeSafetyBlock, Message: message, ExitCode: 3}
}

// ConcurrencyLimit builds the no-slot-available failure.
func ConcurrencyLimit() *Error {
	return &Error{
		Code:     CodeConcurrencyLimit,
		Message:  "Concurrency limit reached, no execution slot available",
		ExitCode: 4,
	}
}

// InvalidRunID builds the report-writer path rejection.
func InvalidRunID(runID string) *Error {
	return &Error{
		Code:     CodeInvalidRunID,
		Message:  fmt.Sprintf("Invalid Run ID: %q", runID),
		ExitCode: 5,
	}
}

// Validation builds a request DTO failure.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, ExitCode: 2}
}

// WrapHandler converts a business-handler error into a toolkit failure.
// Typed toolkit errors pass through unchanged so handler-originated codes
// (including CONCURRENCY_LIMIT from a nested call) keep their semantics.
func WrapHandler(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Code: CodeHandlerFailed, Message: "Command handler failed", ExitCode: 1, cause: err}
}

// AsError extracts a toolkit *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
