// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"

	"github.com/caseflow/caseflow/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTaskNotFound indicates a task was not found by the given slug.
	ErrTaskNotFound = errors.New("task not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given slug.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrCaseNotFound indicates a case was not found by the given identifier.
	ErrCaseNotFound = errors.New("case not found")

	// ErrWorkItemNotFound indicates a work item was not found by the given identifier.
	ErrWorkItemNotFound = errors.New("work item not found")

	// ErrFormNotFound indicates a form was not found by the given slug.
	ErrFormNotFound = errors.New("form not found")

	// ErrConflictingEdge indicates a second flow edge was attempted for a
	// (workflow, task) pair that is already bound.
	ErrConflictingEdge = errors.New("conflicting flow edge for task")

	// ErrInvalidTransition mirrors the model-level transition error for
	// conditional updates that found the row in a different state.
	ErrInvalidTransition = models.ErrInvalidTransition
)

// StoreError wraps persistence errors with operational context.
type StoreError struct {
	Op     string // Operation being performed (e.g. "SaveTaskFlow")
	Entity string // Entity kind ("task", "case", ...)
	Key    string // Identifier or slug if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s failed for %s %s: %v", e.Op, e.Entity, e.Key, e.Err)
	}

	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a persistence error with context.
func NewStoreError(op, entity, key string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, Key: key, Err: err}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrCaseNotFound) ||
		errors.Is(err, ErrWorkItemNotFound) ||
		errors.Is(err, ErrFormNotFound)
}

// IsConflictingEdge checks if an error indicates a duplicate graph edge.
func IsConflictingEdge(err error) bool {
	return errors.Is(err, ErrConflictingEdge)
}
