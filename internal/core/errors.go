package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input or configuration
	ErrCatGroup      ErrorCategory = "group"      // Group membership could not be established
	ErrCatRelease    ErrorCategory = "release"    // Group membership could not be released
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatConflict   ErrorCategory = "conflict"   // Duplicate join or release
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrGroup creates a group-initialization error.
func ErrGroup(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatGroup,
		Code:     code,
		Message:  message,
	}
}

// ErrRelease creates a group-release error.
func ErrRelease(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatRelease,
		Code:     code,
		Message:  message,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatExecution,
		Code:     code,
		Message:  message,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category: ErrCatTimeout,
		Code:     "TIMEOUT",
		Message:  message,
	}
}

// ErrConflict creates a conflict error.
func ErrConflict(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatConflict,
		Code:     code,
		Message:  message,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category: ErrCatNetwork,
		Code:     "NETWORK",
		Message:  message,
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	// Group error codes
	CodeInvalidRank     = "INVALID_RANK"
	CodeInvalidSize     = "INVALID_SIZE"
	CodePartialIdentity = "PARTIAL_IDENTITY"
	CodeJoinFailed      = "JOIN_FAILED"

	// Release error codes
	CodeReleaseFailed   = "RELEASE_FAILED"
	CodeNotReleased     = "NOT_RELEASED"
	CodeAlreadyReleased = "ALREADY_RELEASED"

	// Conflict error codes
	CodeAlreadyJoined = "ALREADY_JOINED"
	CodeNotJoined     = "NOT_JOINED"

	// Validation error codes
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeMalformedLine  = "MALFORMED_LINE"
	CodeMissingMembers = "MISSING_MEMBERS"

	// Execution error codes
	CodeEmitFailed  = "EMIT_FAILED"
	CodeChildFailed = "CHILD_FAILED"
)
