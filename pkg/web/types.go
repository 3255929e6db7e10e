// Package web provides HTTP request and response types for the case API.
package web

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Slug               string         `json:"slug"                 validate:"required,lowercase"`
	Name               string         `json:"name"                 validate:"required"`
	Description        string         `json:"description,omitempty"`
	Type               string         `json:"type"                 validate:"required,oneof=simple complete_workflow_form complete_task_form"`
	Meta               map[string]any `json:"meta,omitempty"`
	AddressGroups      string         `json:"address_groups,omitempty"`
	ControlGroups      string         `json:"control_groups,omitempty"`
	FormSlug           string         `json:"form_slug,omitempty"`
	LeadTime           *int           `json:"lead_time,omitempty"`
	IsMultipleInstance bool           `json:"is_multiple_instance"`
}

// CreateWorkflowRequest represents the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Slug          string         `json:"slug"            validate:"required,lowercase"`
	Name          string         `json:"name"            validate:"required"`
	Description   string         `json:"description,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	StartTasks    []string       `json:"start_tasks"     validate:"required,min=1"`
	IsPublished   bool           `json:"is_published"`
	AllowAllForms bool           `json:"allow_all_forms"`
	AllowForms    []string       `json:"allow_forms,omitempty"`
}

// CreateFlowRequest represents the request body for binding an outgoing
// flow edge to a task within a workflow.
type CreateFlowRequest struct {
	TaskSlug string `json:"task" validate:"required"`
	Next     string `json:"next" validate:"required"`
}

// CreateFormRequest represents the request body for creating a form.
type CreateFormRequest struct {
	Slug   string         `json:"slug"   validate:"required,lowercase"`
	Name   string         `json:"name"   validate:"required"`
	Schema map[string]any `json:"schema,omitempty"`
}

// StartCaseRequest represents the request body for starting a case.
type StartCaseRequest struct {
	WorkflowSlug     string         `json:"workflow" validate:"required"`
	FormSlug         string         `json:"form,omitempty"`
	Meta             map[string]any `json:"meta,omitempty"`
	Document         map[string]any `json:"document,omitempty"`
	ParentWorkItemID string         `json:"parent_work_item,omitempty"`
}

// CreateWorkItemRequest represents the request body for adding an extra
// instance of a multiple instance task to a case.
type CreateWorkItemRequest struct {
	TaskSlug        string   `json:"task" validate:"required"`
	AddressedGroups []string `json:"addressed_groups,omitempty"`
}

// CloseWorkItemRequest represents the optional request body of the work
// item complete and skip endpoints.
type CloseWorkItemRequest struct {
	Document map[string]any `json:"document,omitempty"`
}
