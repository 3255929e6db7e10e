// Package memory provides a map-backed persistence implementation for
// tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// Persistence keeps all entities in memory, guarded by a single mutex.
type Persistence struct {
	mu sync.RWMutex

	tasks     map[string]*models.Task
	workflows map[string]*models.Workflow
	flows     map[string]*models.Flow
	taskFlows map[string]*models.TaskFlow
	forms     map[string]*models.Form
	cases     map[string]*models.Case
	workItems map[string]*models.WorkItem
}

func NewPersistence() *Persistence {
	return &Persistence{
		tasks:     make(map[string]*models.Task),
		workflows: make(map[string]*models.Workflow),
		flows:     make(map[string]*models.Flow),
		taskFlows: make(map[string]*models.TaskFlow),
		forms:     make(map[string]*models.Form),
		cases:     make(map[string]*models.Case),
		workItems: make(map[string]*models.WorkItem),
	}
}

func (p *Persistence) Tasks(_ context.Context) ([]*models.Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		tasks = append(tasks, copyOf(task))
	}

	return tasks, nil
}

func (p *Persistence) TaskBySlug(_ context.Context, slug string) (*models.Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	task, ok := p.tasks[slug]
	if !ok {
		return nil, persistence.NewStoreError("TaskBySlug", "task", slug, persistence.ErrTaskNotFound)
	}

	return copyOf(task), nil
}

func (p *Persistence) TasksBySlugs(ctx context.Context, slugs []string) ([]*models.Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(slugs))

	for _, slug := range slugs {
		task, ok := p.tasks[slug]
		if !ok {
			return nil, persistence.NewStoreError("TasksBySlugs", "task", slug, persistence.ErrTaskNotFound)
		}

		tasks = append(tasks, copyOf(task))
	}

	return tasks, nil
}

func (p *Persistence) SaveTask(_ context.Context, task *models.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks[task.Slug] = copyOf(task)

	return nil
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(p.workflows))
	for _, workflow := range p.workflows {
		workflows = append(workflows, copyOf(workflow))
	}

	return workflows, nil
}

func (p *Persistence) WorkflowBySlug(_ context.Context, slug string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow, ok := p.workflows[slug]
	if !ok {
		return nil, persistence.NewStoreError("WorkflowBySlug", "workflow", slug, persistence.ErrWorkflowNotFound)
	}

	return copyOf(workflow), nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workflows[workflow.Slug] = copyOf(workflow)

	return nil
}

func (p *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flow, ok := p.flows[id]
	if !ok {
		return nil, persistence.NewStoreError("FlowByID", "flow", id, persistence.ErrFlowNotFound)
	}

	return copyOf(flow), nil
}

func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}

	p.flows[flow.ID] = copyOf(flow)

	return nil
}

func (p *Persistence) SaveTaskFlow(_ context.Context, taskFlow *models.TaskFlow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if taskFlow.ID == "" {
		taskFlow.ID = uuid.New().String()
	}

	for _, existing := range p.taskFlows {
		if existing.WorkflowSlug == taskFlow.WorkflowSlug &&
			existing.TaskSlug == taskFlow.TaskSlug &&
			existing.ID != taskFlow.ID {
			return persistence.NewStoreError(
				"SaveTaskFlow", "task_flow", taskFlow.TaskSlug, persistence.ErrConflictingEdge)
		}
	}

	p.taskFlows[taskFlow.ID] = copyOf(taskFlow)

	return nil
}

func (p *Persistence) TaskFlowByTask(_ context.Context, workflowSlug, taskSlug string) (*models.TaskFlow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, taskFlow := range p.taskFlows {
		if taskFlow.WorkflowSlug == workflowSlug && taskFlow.TaskSlug == taskSlug {
			return copyOf(taskFlow), nil
		}
	}

	return nil, nil
}

func (p *Persistence) TaskFlowsByFlow(_ context.Context, flowID string) ([]*models.TaskFlow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	taskFlows := make([]*models.TaskFlow, 0)

	for _, taskFlow := range p.taskFlows {
		if taskFlow.FlowID == flowID {
			taskFlows = append(taskFlows, copyOf(taskFlow))
		}
	}

	return taskFlows, nil
}

func (p *Persistence) FormBySlug(_ context.Context, slug string) (*models.Form, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	form, ok := p.forms[slug]
	if !ok {
		return nil, persistence.NewStoreError("FormBySlug", "form", slug, persistence.ErrFormNotFound)
	}

	return copyOf(form), nil
}

func (p *Persistence) SaveForm(_ context.Context, form *models.Form) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.forms[form.Slug] = copyOf(form)

	return nil
}

func (p *Persistence) CaseByID(_ context.Context, id string) (*models.Case, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	kase, ok := p.cases[id]
	if !ok {
		return nil, persistence.NewStoreError("CaseByID", "case", id, persistence.ErrCaseNotFound)
	}

	return copyOf(kase), nil
}

func (p *Persistence) CasesByWorkflow(_ context.Context, workflowSlug string) ([]*models.Case, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cases := make([]*models.Case, 0)

	for _, kase := range p.cases {
		if kase.WorkflowSlug == workflowSlug {
			cases = append(cases, copyOf(kase))
		}
	}

	return cases, nil
}

func (p *Persistence) SaveCase(_ context.Context, kase *models.Case) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cases[kase.ID] = copyOf(kase)

	return nil
}

func (p *Persistence) CloseCase(_ context.Context, kase *models.Case) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.cases[kase.ID]
	if !ok {
		return persistence.NewStoreError("CloseCase", "case", kase.ID, persistence.ErrCaseNotFound)
	}

	if stored.Status != models.CaseStatusRunning {
		return persistence.NewStoreError("CloseCase", "case", kase.ID, persistence.ErrInvalidTransition)
	}

	p.cases[kase.ID] = copyOf(kase)

	return nil
}

func (p *Persistence) WorkItemByID(_ context.Context, id string) (*models.WorkItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workItem, ok := p.workItems[id]
	if !ok {
		return nil, persistence.NewStoreError("WorkItemByID", "work_item", id, persistence.ErrWorkItemNotFound)
	}

	return copyOf(workItem), nil
}

func (p *Persistence) WorkItemsByCase(_ context.Context, caseID string) ([]*models.WorkItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workItems := make([]*models.WorkItem, 0)

	for _, workItem := range p.workItems {
		if workItem.CaseID == caseID {
			workItems = append(workItems, copyOf(workItem))
		}
	}

	return workItems, nil
}

func (p *Persistence) WorkItemsByCaseTaskStatus(
	_ context.Context, caseID, taskSlug string, status models.WorkItemStatus,
) ([]*models.WorkItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workItems := make([]*models.WorkItem, 0)

	for _, workItem := range p.workItems {
		if workItem.CaseID == caseID && workItem.TaskSlug == taskSlug && workItem.Status == status {
			workItems = append(workItems, copyOf(workItem))
		}
	}

	return workItems, nil
}

func (p *Persistence) OpenWorkItemsByCase(_ context.Context, caseID string) ([]*models.WorkItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workItems := make([]*models.WorkItem, 0)

	for _, workItem := range p.workItems {
		if workItem.CaseID == caseID && workItem.Status == models.WorkItemStatusReady {
			workItems = append(workItems, copyOf(workItem))
		}
	}

	return workItems, nil
}

func (p *Persistence) SaveWorkItem(_ context.Context, workItem *models.WorkItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workItems[workItem.ID] = copyOf(workItem)

	return nil
}

func (p *Persistence) CloseWorkItem(_ context.Context, workItem *models.WorkItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.workItems[workItem.ID]
	if !ok {
		return persistence.NewStoreError("CloseWorkItem", "work_item", workItem.ID, persistence.ErrWorkItemNotFound)
	}

	if stored.Status != models.WorkItemStatusReady {
		return persistence.NewStoreError("CloseWorkItem", "work_item", workItem.ID, persistence.ErrInvalidTransition)
	}

	p.workItems[workItem.ID] = copyOf(workItem)

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// copyOf shallow-copies an entity so callers never share map-backed state.
func copyOf[T any](entity *T) *T {
	clone := *entity

	return &clone
}
