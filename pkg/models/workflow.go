package models

import "time"

// Workflow is the configured task graph cases are instantiated from.
type Workflow struct {
	Slug        string         `json:"slug"        validate:"required,lowercase"`
	Name        string         `json:"name"        validate:"required"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`

	// StartTasks are the task slugs instantiated when a case is started.
	StartTasks []string `json:"start_tasks" validate:"required,min=1"`

	IsPublished bool `json:"is_published"`
	IsArchived  bool `json:"is_archived"`

	// AllowAllForms permits starting a case with any form. When false,
	// only forms listed in AllowForms are accepted.
	AllowAllForms bool     `json:"allow_all_forms"`
	AllowForms    []string `json:"allow_forms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Flow holds the successor-selection expression of one or more graph edges.
// It is reached only through TaskFlow; it owns no task reference itself.
type Flow struct {
	ID string `json:"id"`

	// Next is the expression evaluated on completion, yielding the slug(s)
	// of the task(s) to activate next.
	Next string `json:"next" validate:"required"`

	CreatedAt time.Time `json:"created_at"`
}

// TaskFlow is the edge entity binding a (workflow, task) pair to a flow.
// A task has at most one outgoing flow per workflow.
type TaskFlow struct {
	ID           string `json:"id"`
	WorkflowSlug string `json:"workflow" validate:"required"`
	TaskSlug     string `json:"task"     validate:"required"`
	FlowID       string `json:"flow"     validate:"required"`

	CreatedAt time.Time `json:"created_at"`
}
