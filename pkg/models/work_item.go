package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkItemStatus represents the lifecycle state of a work item.
type WorkItemStatus string

const (
	WorkItemStatusReady     WorkItemStatus = "ready"     // Ready to be processed
	WorkItemStatusCompleted WorkItemStatus = "completed" // Work item is done
	WorkItemStatusCanceled  WorkItemStatus = "canceled"  // Work item was canceled
	WorkItemStatusSkipped   WorkItemStatus = "skipped"   // Work item was skipped
)

// IsTerminal reports whether the status allows no further transitions.
func (s WorkItemStatus) IsTerminal() bool {
	return s != WorkItemStatusReady
}

// WorkItem is a unit of work instantiated from a task within a case.
type WorkItem struct {
	ID       string         `json:"id"`
	CaseID   string         `json:"case_id" validate:"required"`
	TaskSlug string         `json:"task"    validate:"required"`
	Status   WorkItemStatus `json:"status"`

	// Name and Description default from the task when unset.
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Meta     map[string]any `json:"meta,omitempty"`
	Document map[string]any `json:"document,omitempty"`

	// AddressedGroups offer the work item to a group of users; such are
	// not committed to process it though.
	AddressedGroups []string `json:"addressed_groups"`

	// ControllingGroups are assigned to the work item for controlling.
	ControllingGroups []string `json:"controlling_groups"`

	// AssignedUsers are responsible to undertake the work item.
	AssignedUsers []string `json:"assigned_users"`

	// ChildCaseID references the case of a sub-workflow spawned by this
	// work item. The work item cannot complete until that case is terminal.
	ChildCaseID string `json:"child_case_id,omitempty"`

	Deadline *time.Time `json:"deadline,omitempty"`

	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ClosedByUser  string     `json:"closed_by_user,omitempty"`
	ClosedByGroup string     `json:"closed_by_group,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkItem creates a ready work item for the given task within a case.
// Name and description default from the task and the deadline derives from
// the task lead time; both are decided here, at construction time.
func NewWorkItem(task *Task, kase *Case, addressedGroups, controllingGroups []string) *WorkItem {
	now := time.Now().UTC()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	if addressedGroups == nil {
		addressedGroups = []string{}
	}

	if controllingGroups == nil {
		controllingGroups = []string{}
	}

	return &WorkItem{
		ID:                id.String(),
		CaseID:            kase.ID,
		TaskSlug:          task.Slug,
		Status:            WorkItemStatusReady,
		Name:              task.Name,
		Description:       task.Description,
		Meta:              make(map[string]any),
		AddressedGroups:   addressedGroups,
		ControllingGroups: controllingGroups,
		AssignedUsers:     []string{},
		Deadline:          task.CalculateDeadline(now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Complete transitions the work item to completed. Closing fields are
// written atomically with the status.
func (w *WorkItem) Complete(identity Identity, now time.Time) error {
	return w.close(WorkItemStatusCompleted, identity, now)
}

// Cancel transitions the work item to canceled.
func (w *WorkItem) Cancel(identity Identity, now time.Time) error {
	return w.close(WorkItemStatusCanceled, identity, now)
}

// Skip transitions the work item to skipped.
func (w *WorkItem) Skip(identity Identity, now time.Time) error {
	return w.close(WorkItemStatusSkipped, identity, now)
}

func (w *WorkItem) close(status WorkItemStatus, identity Identity, now time.Time) error {
	if w.Status != WorkItemStatusReady {
		return fmt.Errorf("work item %s is %s, not ready: %w", w.ID, w.Status, ErrInvalidTransition)
	}

	w.Status = status
	w.ClosedAt = &now
	w.ClosedByUser = identity.Username
	w.ClosedByGroup = identity.Group
	w.UpdatedAt = now

	return nil
}
