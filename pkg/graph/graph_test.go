package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
	"github.com/caseflow/caseflow/pkg/persistence/memory"
)

func setupModel(t *testing.T) (*Model, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	ctx := context.Background()

	for _, slug := range []string{"review", "audit", "approve"} {
		require.NoError(t, store.SaveTask(ctx, &models.Task{
			Slug: slug,
			Name: slug,
			Type: models.TaskTypeSimple,
		}))
	}

	require.NoError(t, store.SaveWorkflow(ctx, &models.Workflow{
		Slug:       "permit",
		Name:       "Permit",
		StartTasks: []string{"review"},
	}))

	return NewModel(store), store
}

func TestSuccessorFlow(t *testing.T) {
	model, _ := setupModel(t)
	ctx := context.Background()

	flow := &models.Flow{Next: `"approve"`}
	_, err := model.AddTaskFlow(ctx, "permit", "review", flow)
	require.NoError(t, err)

	found, err := model.SuccessorFlow(ctx, "permit", "review")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, `"approve"`, found.Next)
}

func TestSuccessorFlowMissingEdge(t *testing.T) {
	model, _ := setupModel(t)

	flow, err := model.SuccessorFlow(context.Background(), "permit", "approve")
	require.NoError(t, err)
	assert.Nil(t, flow)
}

func TestConflictingEdgeRejected(t *testing.T) {
	model, _ := setupModel(t)
	ctx := context.Background()

	_, err := model.AddTaskFlow(ctx, "permit", "review", &models.Flow{Next: `"approve"`})
	require.NoError(t, err)

	_, err = model.AddTaskFlow(ctx, "permit", "review", &models.Flow{Next: `"audit"`})
	require.Error(t, err)
	assert.True(t, persistence.IsConflictingEdge(err))
}

func TestTasksReferencedBySharedFlow(t *testing.T) {
	model, _ := setupModel(t)
	ctx := context.Background()

	flow := &models.Flow{Next: `"approve"`}
	_, err := model.AddTaskFlow(ctx, "permit", "review", flow)
	require.NoError(t, err)

	// Both siblings share the same flow: an AND-join.
	_, err = model.AddTaskFlow(ctx, "permit", "audit", flow)
	require.NoError(t, err)

	tasks, err := model.TasksReferencedBy(ctx, flow)
	require.NoError(t, err)

	slugs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		slugs = append(slugs, task.Slug)
	}

	assert.ElementsMatch(t, []string{"review", "audit"}, slugs)
}
