// Package persistence provides the data storage abstraction for workflow
// configuration, cases and work items.
package persistence

import (
	"context"

	"github.com/caseflow/caseflow/pkg/models"
)

type Persistence interface {
	// Configuration entities.
	Tasks(ctx context.Context) ([]*models.Task, error)
	TaskBySlug(ctx context.Context, slug string) (*models.Task, error)
	TasksBySlugs(ctx context.Context, slugs []string) ([]*models.Task, error)
	SaveTask(ctx context.Context, task *models.Task) error

	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowBySlug(ctx context.Context, slug string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error

	// SaveTaskFlow persists a graph edge. It fails with ErrConflictingEdge
	// when the (workflow, task) pair is already bound to a flow.
	SaveTaskFlow(ctx context.Context, taskFlow *models.TaskFlow) error
	TaskFlowByTask(ctx context.Context, workflowSlug, taskSlug string) (*models.TaskFlow, error)
	TaskFlowsByFlow(ctx context.Context, flowID string) ([]*models.TaskFlow, error)

	FormBySlug(ctx context.Context, slug string) (*models.Form, error)
	SaveForm(ctx context.Context, form *models.Form) error

	// Runtime entities.
	CaseByID(ctx context.Context, id string) (*models.Case, error)
	CasesByWorkflow(ctx context.Context, workflowSlug string) ([]*models.Case, error)
	SaveCase(ctx context.Context, kase *models.Case) error

	// CloseCase persists a terminal case transition. It fails with
	// ErrInvalidTransition when the stored case already left running,
	// making the transition exactly-once across replicas.
	CloseCase(ctx context.Context, kase *models.Case) error

	WorkItemByID(ctx context.Context, id string) (*models.WorkItem, error)
	WorkItemsByCase(ctx context.Context, caseID string) ([]*models.WorkItem, error)
	WorkItemsByCaseTaskStatus(ctx context.Context, caseID, taskSlug string, status models.WorkItemStatus) ([]*models.WorkItem, error)
	OpenWorkItemsByCase(ctx context.Context, caseID string) ([]*models.WorkItem, error)
	SaveWorkItem(ctx context.Context, workItem *models.WorkItem) error

	// CloseWorkItem persists a terminal work item transition. It fails
	// with ErrInvalidTransition when the stored work item is no longer
	// ready (conditional update, not read-then-write).
	CloseWorkItem(ctx context.Context, workItem *models.WorkItem) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
