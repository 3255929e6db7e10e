// Package graph exposes the workflow task graph: per-workflow flow edges
// and the sibling sets that join on them.
package graph

import (
	"context"
	"fmt"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// Model answers graph queries against the persisted configuration. The
// graph of a workflow is a task-indexed partial function to a flow, not a
// multigraph; uniqueness of the (workflow, task) edge is enforced on
// creation.
type Model struct {
	persistence persistence.Persistence
}

func NewModel(persistence persistence.Persistence) *Model {
	return &Model{persistence: persistence}
}

// SuccessorFlow returns the flow leaving the given task within a workflow,
// or nil when the task has no outgoing edge (implicitly terminal).
func (m *Model) SuccessorFlow(ctx context.Context, workflowSlug, taskSlug string) (*models.Flow, error) {
	taskFlow, err := m.persistence.TaskFlowByTask(ctx, workflowSlug, taskSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to look up edge for task %s: %w", taskSlug, err)
	}

	if taskFlow == nil {
		return nil, nil
	}

	flow, err := m.persistence.FlowByID(ctx, taskFlow.FlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", taskFlow.FlowID, err)
	}

	return flow, nil
}

// TasksReferencedBy returns all tasks whose edge points at the given flow:
// the sibling set that must jointly leave ready before the edge fires.
func (m *Model) TasksReferencedBy(ctx context.Context, flow *models.Flow) ([]*models.Task, error) {
	taskFlows, err := m.persistence.TaskFlowsByFlow(ctx, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up edges of flow %s: %w", flow.ID, err)
	}

	slugs := make([]string, 0, len(taskFlows))
	for _, taskFlow := range taskFlows {
		slugs = append(slugs, taskFlow.TaskSlug)
	}

	return m.persistence.TasksBySlugs(ctx, slugs)
}

// AddTaskFlow creates a flow and binds it to a task within a workflow. A
// second edge for the same (workflow, task) pair fails with
// ErrConflictingEdge.
func (m *Model) AddTaskFlow(ctx context.Context, workflowSlug, taskSlug string, flow *models.Flow) (*models.TaskFlow, error) {
	if err := m.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	taskFlow := &models.TaskFlow{
		WorkflowSlug: workflowSlug,
		TaskSlug:     taskSlug,
		FlowID:       flow.ID,
	}

	if err := m.persistence.SaveTaskFlow(ctx, taskFlow); err != nil {
		return nil, err
	}

	return taskFlow, nil
}
