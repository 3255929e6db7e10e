package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
	"github.com/caseflow/caseflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"work_items", "cases", "task_flows", "flows", "forms", "workflows", "tasks", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("caseflow_test"),
			postgres.WithUsername("caseflow"),
			postgres.WithPassword("caseflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistenceMigrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"tasks", "workflows", "flows", "task_flows", "forms", "cases", "work_items"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}
}

func TestTaskAndWorkflowRoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	leadTime := 3600
	task := &models.Task{
		Slug:          "review",
		Name:          "Review",
		Type:          models.TaskTypeSimple,
		Meta:          map[string]any{"team": "legal"},
		AddressGroups: `"legal"`,
		LeadTime:      &leadTime,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.SaveTask(ctx, task))

	loaded, err := store.TaskBySlug(ctx, "review")
	require.NoError(t, err)
	assert.Equal(t, "Review", loaded.Name)
	require.NotNil(t, loaded.LeadTime)
	assert.Equal(t, 3600, *loaded.LeadTime)
	assert.Equal(t, "legal", loaded.Meta["team"])

	workflow := &models.Workflow{
		Slug:        "permit",
		Name:        "Permit",
		StartTasks:  []string{"review"},
		IsPublished: true,
		AllowForms:  []string{"application"},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	loadedWorkflow, err := store.WorkflowBySlug(ctx, "permit")
	require.NoError(t, err)
	assert.Equal(t, []string{"review"}, loadedWorkflow.StartTasks)
	assert.Equal(t, []string{"application"}, loadedWorkflow.AllowForms)
}

func TestSaveTaskFlowUniqueEdge(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	require.NoError(t, store.SaveTask(ctx, &models.Task{
		Slug: "review", Name: "Review", Type: models.TaskTypeSimple,
	}))
	require.NoError(t, store.SaveWorkflow(ctx, &models.Workflow{
		Slug: "permit", Name: "Permit", StartTasks: []string{"review"}, IsPublished: true,
	}))

	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "f1", Next: `"approve"`}))
	require.NoError(t, store.SaveFlow(ctx, &models.Flow{ID: "f2", Next: `"reject"`}))

	require.NoError(t, store.SaveTaskFlow(ctx, &models.TaskFlow{
		WorkflowSlug: "permit", TaskSlug: "review", FlowID: "f1",
	}))

	err := store.SaveTaskFlow(ctx, &models.TaskFlow{
		WorkflowSlug: "permit", TaskSlug: "review", FlowID: "f2",
	})
	require.True(t, persistence.IsConflictingEdge(err))

	taskFlow, err := store.TaskFlowByTask(ctx, "permit", "review")
	require.NoError(t, err)
	require.NotNil(t, taskFlow)
	assert.Equal(t, "f1", taskFlow.FlowID)

	absent, err := store.TaskFlowByTask(ctx, "permit", "approve")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestCloseWorkItemConditionalUpdate(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	task := &models.Task{Slug: "review", Name: "Review", Type: models.TaskTypeSimple}
	require.NoError(t, store.SaveTask(ctx, task))

	kase := models.NewCase("permit", "")
	require.NoError(t, store.SaveCase(ctx, kase))

	workItem := models.NewWorkItem(task, kase, []string{"legal"}, []string{"auditors"})
	require.NoError(t, store.SaveWorkItem(ctx, workItem))

	loaded, err := store.WorkItemByID(ctx, workItem.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"legal"}, loaded.AddressedGroups)
	assert.Equal(t, []string{"auditors"}, loaded.ControllingGroups)

	winner := *workItem
	require.NoError(t, winner.Complete(models.Identity{Username: "dana", Group: "legal"}, time.Now().UTC()))
	require.NoError(t, store.CloseWorkItem(ctx, &winner))

	loser := *workItem
	require.NoError(t, loser.Cancel(models.Identity{Username: "admin"}, time.Now().UTC()))
	require.ErrorIs(t, store.CloseWorkItem(ctx, &loser), persistence.ErrInvalidTransition)

	stored, err := store.WorkItemByID(ctx, workItem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkItemStatusCompleted, stored.Status)
	assert.Equal(t, "dana", stored.ClosedByUser)
	require.NotNil(t, stored.ClosedAt)
}

func TestCloseCaseConditionalUpdate(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	kase := models.NewCase("permit", "")
	require.NoError(t, store.SaveCase(ctx, kase))

	winner := *kase
	require.NoError(t, winner.Complete(models.Identity{Username: "dana"}, time.Now().UTC()))
	require.NoError(t, store.CloseCase(ctx, &winner))

	loser := *kase
	require.NoError(t, loser.Cancel(models.Identity{Username: "admin"}, time.Now().UTC()))
	require.ErrorIs(t, store.CloseCase(ctx, &loser), persistence.ErrInvalidTransition)
}

func TestWorkItemStatusQueries(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	task := &models.Task{Slug: "review", Name: "Review", Type: models.TaskTypeSimple}
	require.NoError(t, store.SaveTask(ctx, task))

	kase := models.NewCase("permit", "")
	require.NoError(t, store.SaveCase(ctx, kase))

	first := models.NewWorkItem(task, kase, nil, nil)
	require.NoError(t, store.SaveWorkItem(ctx, first))

	second := models.NewWorkItem(task, kase, nil, nil)
	require.NoError(t, second.Complete(models.Identity{Username: "dana"}, time.Now().UTC()))
	require.NoError(t, store.SaveWorkItem(ctx, second))

	ready, err := store.WorkItemsByCaseTaskStatus(ctx, kase.ID, "review", models.WorkItemStatusReady)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, first.ID, ready[0].ID)

	open, err := store.OpenWorkItemsByCase(ctx, kase.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	all, err := store.WorkItemsByCase(ctx, kase.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
