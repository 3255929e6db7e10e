// Package engine implements the completion cascade: deciding, on work item
// completion, whether the case may progress, which successor tasks to
// activate and how many work item instances to materialize.
package engine

import (
	"errors"
	"fmt"

	"github.com/caseflow/caseflow/pkg/models"
)

var (
	// ErrInvalidTransition mirrors the model-level transition error.
	ErrInvalidTransition = models.ErrInvalidTransition

	// ErrUnresolvedChildCase indicates completion was attempted while the
	// work item's sub-workflow case is not terminal yet.
	ErrUnresolvedChildCase = errors.New("child case is not terminal")

	// ErrWorkflowNotStartable indicates the workflow is unpublished or
	// archived and cannot be instantiated.
	ErrWorkflowNotStartable = errors.New("workflow is not startable")

	// ErrFormNotAllowed indicates the workflow does not accept the form
	// the case was started with.
	ErrFormNotAllowed = errors.New("form is not allowed for workflow")

	// ErrNotMultipleInstance indicates explicit work item creation was
	// requested for a task that does not fan out.
	ErrNotMultipleInstance = errors.New("task is not a multiple instance task")

	// ErrNotAuthorized indicates the acting identity does not satisfy the
	// work item's controlling policy.
	ErrNotAuthorized = errors.New("identity is not authorized for work item")
)

// FactoryInconsistencyError reports successor creation failing after the
// triggering completion was already committed. The transition and its
// cascade are no longer atomic; this requires operator remediation and is
// never retried silently, as re-running the cascade would duplicate
// successor work items.
type FactoryInconsistencyError struct {
	CaseID     string
	WorkItemID string
	Err        error
}

func (e *FactoryInconsistencyError) Error() string {
	return fmt.Sprintf(
		"successor creation failed after work item %s in case %s was completed: %v",
		e.WorkItemID, e.CaseID, e.Err)
}

func (e *FactoryInconsistencyError) Unwrap() error {
	return e.Err
}

// IsFactoryInconsistency checks whether err reports a committed completion
// with failed cascade side effects.
func IsFactoryInconsistency(err error) bool {
	var inconsistency *FactoryInconsistencyError

	return errors.As(err, &inconsistency)
}
