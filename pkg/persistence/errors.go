// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates a workflow execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrLeadNotFound indicates a lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrLeadStepStateNotFound indicates no state exists for a (lead, workflow, step) key.
	ErrLeadStepStateNotFound = errors.New("lead step state not found")

	// ErrQueueItemNotFound indicates a queue item was not found by the given identifier.
	ErrQueueItemNotFound = errors.New("queue item not found")

	ErrEmailNotFound = errors.New("email not found")

	ErrAccountNotFound = errors.New("connected account not found")
)

// StateError wraps lead step state errors with the key being operated on.
type StateError struct {
	Op         string // Operation being performed (e.g., "GetOrCreate", "Update")
	LeadID     string
	WorkflowID string
	StepID     string
	Err        error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s operation failed for lead %s step %s in workflow %s: %v",
		e.Op, e.LeadID, e.StepID, e.WorkflowID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for state errors.
func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a new state error with context.
func NewStateError(op, leadID, workflowID, stepID string, err error) *StateError {
	return &StateError{
		Op:         op,
		LeadID:     leadID,
		WorkflowID: workflowID,
		StepID:     stepID,
		Err:        err,
	}
}

// EntityError wraps errors about a single stored entity.
type EntityError struct {
	Op     string // Operation being performed
	Entity string // Entity kind, e.g. "lead", "queue item"
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewEntityError(op, entity, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound checks if an error indicates any stored entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrLeadNotFound) ||
		errors.Is(err, ErrLeadStepStateNotFound) ||
		errors.Is(err, ErrQueueItemNotFound) ||
		errors.Is(err, ErrEmailNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsExecutionNotFound checks if an error indicates a workflow execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsLeadNotFound checks if an error indicates a lead was not found.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}
