package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
	"github.com/caseflow/caseflow/pkg/persistence/memory"
)

func TestTaskRoundTrip(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	_, err := store.TaskBySlug(ctx, "review")
	require.True(t, persistence.IsNotFound(err))

	task := &models.Task{Slug: "review", Name: "Review", Type: models.TaskTypeSimple}
	require.NoError(t, store.SaveTask(ctx, task))

	loaded, err := store.TaskBySlug(ctx, "review")
	require.NoError(t, err)
	assert.Equal(t, "Review", loaded.Name)

	// The store hands out copies, not shared pointers.
	loaded.Name = "Mutated"

	again, err := store.TaskBySlug(ctx, "review")
	require.NoError(t, err)
	assert.Equal(t, "Review", again.Name)
}

func TestSaveTaskFlowRejectsSecondEdge(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "f1", Next: `"approve"`}))
	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "f2", Next: `"reject"`}))

	require.NoError(t, store.SaveTaskFlow(ctx, &models.TaskFlow{
		WorkflowSlug: "permit", TaskSlug: "review", FlowID: "f1",
	}))

	err := store.SaveTaskFlow(ctx, &models.TaskFlow{
		WorkflowSlug: "permit", TaskSlug: "review", FlowID: "f2",
	})
	require.True(t, persistence.IsConflictingEdge(err))

	// The same task may carry an edge in another workflow.
	require.NoError(t, store.SaveTaskFlow(ctx, &models.TaskFlow{
		WorkflowSlug: "renewal", TaskSlug: "review", FlowID: "f2",
	}))
}

func TestTaskFlowByTaskAbsentIsNotAnError(t *testing.T) {
	store := memory.NewPersistence()

	taskFlow, err := store.TaskFlowByTask(context.Background(), "permit", "review")
	require.NoError(t, err)
	assert.Nil(t, taskFlow)
}

func TestCloseWorkItemIsConditional(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	task := &models.Task{Slug: "review", Name: "Review", Type: models.TaskTypeSimple}
	kase := models.NewCase("permit", "")
	require.NoError(t, store.SaveCase(ctx, kase))

	workItem := models.NewWorkItem(task, kase, nil, nil)
	require.NoError(t, store.SaveWorkItem(ctx, workItem))

	first := *workItem
	require.NoError(t, first.Complete(models.Identity{Username: "dana"}, first.CreatedAt))
	require.NoError(t, store.CloseWorkItem(ctx, &first))

	// A concurrent loser sees the stored item already closed.
	second := *workItem
	require.NoError(t, second.Cancel(models.Identity{Username: "admin"}, second.CreatedAt))
	err := store.CloseWorkItem(ctx, &second)
	require.ErrorIs(t, err, persistence.ErrInvalidTransition)

	stored, err := store.WorkItemByID(ctx, workItem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkItemStatusCompleted, stored.Status)
	assert.Equal(t, "dana", stored.ClosedByUser)
}

func TestCloseCaseIsConditional(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	kase := models.NewCase("permit", "")
	require.NoError(t, store.SaveCase(ctx, kase))

	first := *kase
	require.NoError(t, first.Complete(models.Identity{Username: "dana"}, first.CreatedAt))
	require.NoError(t, store.CloseCase(ctx, &first))

	second := *kase
	require.NoError(t, second.Cancel(models.Identity{Username: "admin"}, second.CreatedAt))
	require.ErrorIs(t, store.CloseCase(ctx, &second), persistence.ErrInvalidTransition)
}

func TestWorkItemQueries(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	task := &models.Task{Slug: "review", Name: "Review", Type: models.TaskTypeSimple}
	other := &models.Task{Slug: "approve", Name: "Approve", Type: models.TaskTypeSimple}
	kase := models.NewCase("permit", "")
	require.NoError(t, store.SaveCase(ctx, kase))

	ready := models.NewWorkItem(task, kase, nil, nil)
	require.NoError(t, store.SaveWorkItem(ctx, ready))

	closed := models.NewWorkItem(other, kase, nil, nil)
	require.NoError(t, closed.Complete(models.Identity{Username: "dana"}, closed.CreatedAt))
	require.NoError(t, store.SaveWorkItem(ctx, closed))

	open, err := store.OpenWorkItemsByCase(ctx, kase.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, ready.ID, open[0].ID)

	byTask, err := store.WorkItemsByCaseTaskStatus(ctx, kase.ID, "approve", models.WorkItemStatusCompleted)
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, closed.ID, byTask[0].ID)

	all, err := store.WorkItemsByCase(ctx, kase.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
