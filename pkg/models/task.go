// Package models defines the core domain models for the case workflow engine.
package models

import "time"

// TaskType tells clients how a work item derived from this task is completed.
type TaskType string

const (
	TaskTypeSimple               TaskType = "simple"                 // Marked as completed without further input
	TaskTypeCompleteWorkflowForm TaskType = "complete_workflow_form" // Completes the form the case was started with
	TaskTypeCompleteTaskForm     TaskType = "complete_task_form"     // Completes the form bound to the task
)

// Task is a unit of configuration from which work items are instantiated.
type Task struct {
	Slug        string         `json:"slug"        validate:"required,lowercase"`
	Name        string         `json:"name"        validate:"required"`
	Description string         `json:"description,omitempty"`
	Type        TaskType       `json:"type"        validate:"required,oneof=simple complete_workflow_form complete_task_form"`
	Meta        map[string]any `json:"meta,omitempty"`

	// AddressGroups is an expression returning the group(s) derived work
	// items will be addressed to.
	AddressGroups string `json:"address_groups,omitempty"`

	// ControlGroups is an expression returning the group(s) derived work
	// items are assigned to for controlling.
	ControlGroups string `json:"control_groups,omitempty"`

	// FormSlug optionally binds a form for complete_task_form tasks.
	FormSlug string `json:"form_slug,omitempty"`

	// LeadTime is the time in seconds a work item may take to be processed.
	// Used to derive the work item deadline at creation time.
	LeadTime *int `json:"lead_time,omitempty"`

	// IsMultipleInstance fans the task out into one work item per
	// addressed group instead of a single work item.
	IsMultipleInstance bool `json:"is_multiple_instance"`

	IsArchived bool `json:"is_archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CalculateDeadline returns now + lead time, or nil when the task has none.
func (t *Task) CalculateDeadline(now time.Time) *time.Time {
	if t.LeadTime == nil {
		return nil
	}

	deadline := now.Add(time.Duration(*t.LeadTime) * time.Second)

	return &deadline
}
