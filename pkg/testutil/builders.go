// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/caseflow/caseflow/pkg/models"
)

// CreateTestTask creates a simple task with default values that can be
// overridden.
func CreateTestTask(slug string, overrides ...func(*models.Task)) *models.Task {
	task := &models.Task{
		Slug: slug,
		Name: "Test Task " + slug,
		Type: models.TaskTypeSimple,
		Meta: map[string]any{},
	}

	for _, override := range overrides {
		override(task)
	}

	return task
}

// WithMultipleInstance configures the task to fan out per addressed group.
func WithMultipleInstance() func(*models.Task) {
	return func(task *models.Task) {
		task.IsMultipleInstance = true
	}
}

// WithAddressGroups sets the address-groups expression.
func WithAddressGroups(expression string) func(*models.Task) {
	return func(task *models.Task) {
		task.AddressGroups = expression
	}
}

// WithControlGroups sets the control-groups expression.
func WithControlGroups(expression string) func(*models.Task) {
	return func(task *models.Task) {
		task.ControlGroups = expression
	}
}

// WithLeadTime sets the task lead time in seconds.
func WithLeadTime(seconds int) func(*models.Task) {
	return func(task *models.Task) {
		task.LeadTime = &seconds
	}
}

// WithArchived marks the task archived.
func WithArchived() func(*models.Task) {
	return func(task *models.Task) {
		task.IsArchived = true
	}
}

// CreateTestWorkflow creates a published workflow with the given start
// tasks.
func CreateTestWorkflow(slug string, startTasks []string, overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		Slug:        slug,
		Name:        "Test Workflow " + slug,
		StartTasks:  startTasks,
		IsPublished: true,
		Meta:        map[string]any{},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithUnpublished marks the workflow as not yet published.
func WithUnpublished() func(*models.Workflow) {
	return func(workflow *models.Workflow) {
		workflow.IsPublished = false
	}
}

// WithAllowForms restricts the workflow to the given starting forms.
func WithAllowForms(slugs ...string) func(*models.Workflow) {
	return func(workflow *models.Workflow) {
		workflow.AllowAllForms = false
		workflow.AllowForms = slugs
	}
}
