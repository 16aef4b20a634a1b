package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Foundry policy-layer errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
)

// Action-space error codes
const (
	ACTION_SPACE_INVALID ErrorCode = "ACTION_SPACE_INVALID"
	ACTION_SPACE_UNKNOWN_DOMAIN ErrorCode = "ACTION_SPACE_UNKNOWN_DOMAIN"
)

// Predictor error codes
const (
	PREDICTOR_LOAD_FAILED ErrorCode = "PREDICTOR_LOAD_FAILED"
	PREDICTOR_TIMEOUT     ErrorCode = "PREDICTOR_TIMEOUT"
	PREDICTOR_MALFORMED   ErrorCode = "PREDICTOR_MALFORMED"
)

// Dataset error codes
const (
	DATASET_READ_FAILED  ErrorCode = "DATASET_READ_FAILED"
	DATASET_PARSE_FAILED ErrorCode = "DATASET_PARSE_FAILED"
)

// FoundryError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints.
type FoundryError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *FoundryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *FoundryError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a FoundryError with the same Code.
func (e *FoundryError) Is(target error) bool {
	var foundryErr *FoundryError
	if errors.As(target, &foundryErr) {
		return e.Code == foundryErr.Code
	}
	return false
}

// NewError creates a new non-retryable FoundryError with the given code and message.
func NewError(code ErrorCode, message string) *FoundryError {
	return &FoundryError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable FoundryError with the given code and message.
// Use this for transient errors that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *FoundryError {
	return &FoundryError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable FoundryError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *FoundryError {
	return &FoundryError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
