// Package services provides the enrollment operations behind the API and their error types.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrExecutionNil    = errors.New("execution cannot be nil")
	ErrInvalidGraph    = errors.New("invalid step graph")
	ErrInvalidSettings = errors.New("invalid workflow settings")
	ErrInvalidTimezone = errors.New("invalid owner timezone")

	// Business Logic Conflicts (409 Conflict).
	ErrExecutionObsolete = errors.New("execution is obsolete")
	ErrNoActiveExecution = errors.New("campaign has no active execution")
	ErrLeadUnsubscribed  = errors.New("lead is unsubscribed")
	ErrLeadNotNew        = errors.New("lead is not new")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrExecutionNil) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidTimezone)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionObsolete) ||
		errors.Is(err, ErrNoActiveExecution) ||
		errors.Is(err, ErrLeadUnsubscribed) ||
		errors.Is(err, ErrLeadNotNew)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func newConflictError(op, code string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: code, Err: err}
}
