package engine

import (
	"context"
	"fmt"

	"github.com/caseflow/caseflow/pkg/expr"
	"github.com/caseflow/caseflow/pkg/models"
)

// createWorkItems materializes work item instances for the given tasks
// within a case. For a multiple instance task, one work item is created
// per resolved address group; an empty resolution degenerates to a single
// instance without addressed groups. Controlling groups are resolved once
// per task and attached uniformly to every instance.
//
// The returned work items are not persisted; committing them is the
// caller's responsibility so creation happens exactly once per cascade
// decision.
func (e *Engine) createWorkItems(
	ctx context.Context,
	tasks []*models.Task,
	kase *models.Case,
	identity models.Identity,
	source *models.WorkItem,
) ([]*models.WorkItem, error) {
	workItems := make([]*models.WorkItem, 0, len(tasks))

	for _, task := range tasks {
		addressedGroups, err := e.resolveGroups(ctx, task.AddressGroups, task, kase, identity, source)
		if err != nil {
			return nil, err
		}

		controllingGroups, err := e.resolveGroups(ctx, task.ControlGroups, task, kase, identity, source)
		if err != nil {
			return nil, err
		}

		if task.IsMultipleInstance && len(addressedGroups) > 0 {
			for _, group := range addressedGroups {
				workItems = append(workItems, models.NewWorkItem(task, kase, []string{group}, controllingGroups))
			}

			continue
		}

		workItems = append(workItems, models.NewWorkItem(task, kase, addressedGroups, controllingGroups))
	}

	return workItems, nil
}

// resolveGroups evaluates a group expression for a task. An empty
// expression resolves to no groups.
func (e *Engine) resolveGroups(
	ctx context.Context,
	expression string,
	task *models.Task,
	kase *models.Case,
	identity models.Identity,
	source *models.WorkItem,
) ([]string, error) {
	if expression == "" {
		return []string{}, nil
	}

	result, err := e.evaluator.Evaluate(ctx, expression, evalEnv(kase, task, identity, source))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve groups for task %s: %w", task.Slug, err)
	}

	return expr.Normalize(result), nil
}

// evalEnv builds the evaluation context handed to the expression
// evaluator. The case document is passed through verbatim; its content is
// opaque to the engine.
func evalEnv(kase *models.Case, task *models.Task, identity models.Identity, source *models.WorkItem) map[string]any {
	env := map[string]any{
		"user":  identity.Username,
		"group": identity.Group,
	}

	if kase != nil {
		env["case"] = map[string]any{
			"id":       kase.ID,
			"workflow": kase.WorkflowSlug,
			"family":   kase.FamilyID,
			"meta":     kase.Meta,
			"document": kase.Document,
		}
	}

	if task != nil {
		env["task"] = map[string]any{
			"slug": task.Slug,
			"meta": task.Meta,
		}
	}

	if source != nil {
		env["work_item"] = map[string]any{
			"id":               source.ID,
			"task":             source.TaskSlug,
			"addressed_groups": source.AddressedGroups,
			"meta":             source.Meta,
			"document":         source.Document,
		}
	}

	return env
}
