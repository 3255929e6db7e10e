package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition indicates an entity is not in the state required for
// the requested status change. It is never retried automatically.
var ErrInvalidTransition = errors.New("invalid status transition")

// CaseStatus represents the lifecycle state of a case.
type CaseStatus string

const (
	CaseStatusRunning   CaseStatus = "running"   // Work items need to be completed
	CaseStatusCompleted CaseStatus = "completed" // Case is done
	CaseStatusCanceled  CaseStatus = "canceled"  // Case was canceled
)

// IsTerminal reports whether the status allows no further transitions.
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusCanceled
}

// Case is a running instantiation of a workflow.
type Case struct {
	ID           string     `json:"id"`
	WorkflowSlug string     `json:"workflow" validate:"required"`
	Status       CaseStatus `json:"status"`

	// FamilyID points at the root case of a tree of cases connected via
	// sub-workflow spawning. Defaults to the case's own ID and is
	// immutable once set.
	FamilyID string `json:"family_id"`

	Meta     map[string]any `json:"meta,omitempty"`
	Document map[string]any `json:"document,omitempty"`
	FormSlug string         `json:"form_slug,omitempty"`

	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ClosedByUser  string     `json:"closed_by_user,omitempty"`
	ClosedByGroup string     `json:"closed_by_group,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCase creates a running case for the given workflow. The family pointer
// defaults to the new case itself; pass familyID to attach a sub-case to an
// existing family.
func NewCase(workflowSlug, familyID string) *Case {
	now := time.Now().UTC()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	c := &Case{
		ID:           id.String(),
		WorkflowSlug: workflowSlug,
		Status:       CaseStatusRunning,
		FamilyID:     familyID,
		Meta:         make(map[string]any),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.FamilyID == "" {
		c.FamilyID = c.ID
	}

	return c
}

// Complete transitions the case to completed and records the closing fields.
// The four writes are a single in-memory mutation so no observer sees a
// terminal status with stale closing fields.
func (c *Case) Complete(identity Identity, now time.Time) error {
	return c.close(CaseStatusCompleted, identity, now)
}

// Cancel transitions the case to canceled and records the closing fields.
func (c *Case) Cancel(identity Identity, now time.Time) error {
	return c.close(CaseStatusCanceled, identity, now)
}

func (c *Case) close(status CaseStatus, identity Identity, now time.Time) error {
	if c.Status != CaseStatusRunning {
		return fmt.Errorf("case %s is %s, not running: %w", c.ID, c.Status, ErrInvalidTransition)
	}

	c.Status = status
	c.ClosedAt = &now
	c.ClosedByUser = identity.Username
	c.ClosedByGroup = identity.Group
	c.UpdatedAt = now

	return nil
}
