package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// ConfigRepository handles the configuration entities: tasks, workflows,
// flows, task flows and forms.
type ConfigRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewConfigRepository(db *sql.DB, logger *slog.Logger) *ConfigRepository {
	return &ConfigRepository{db: db, logger: logger}
}

const taskColumns = `
	slug
  , name
  , description
  , type
  , meta
  , address_groups
  , control_groups
  , form_slug
  , lead_time
  , is_multiple_instance
  , is_archived
  , created_at
  , updated_at
`

func (r *ConfigRepository) Tasks(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer r.closeRows(ctx, rows)

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func (r *ConfigRepository) TaskBySlug(ctx context.Context, slug string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE slug = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("TaskBySlug", "task", slug, persistence.ErrTaskNotFound)
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

func (r *ConfigRepository) TasksBySlugs(ctx context.Context, slugs []string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE slug = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(slugs))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer r.closeRows(ctx, rows)

	bySlug := make(map[string]*models.Task, len(slugs))

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		bySlug[task.Slug] = task
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	tasks := make([]*models.Task, 0, len(slugs))

	for _, slug := range slugs {
		task, ok := bySlug[slug]
		if !ok {
			return nil, persistence.NewStoreError("TasksBySlugs", "task", slug, persistence.ErrTaskNotFound)
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (r *ConfigRepository) SaveTask(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	metaJSON, err := json.Marshal(task.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal task meta: %w", err)
	}

	query := `
		INSERT INTO tasks (slug, name, description, type, meta, address_groups,
			control_groups, form_slug, lead_time, is_multiple_instance, is_archived,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			meta = EXCLUDED.meta,
			address_groups = EXCLUDED.address_groups,
			control_groups = EXCLUDED.control_groups,
			form_slug = EXCLUDED.form_slug,
			lead_time = EXCLUDED.lead_time,
			is_multiple_instance = EXCLUDED.is_multiple_instance,
			is_archived = EXCLUDED.is_archived,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		task.Slug,
		task.Name,
		task.Description,
		task.Type,
		metaJSON,
		task.AddressGroups,
		task.ControlGroups,
		task.FormSlug,
		task.LeadTime,
		task.IsMultipleInstance,
		task.IsArchived,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

const workflowColumns = `
	slug
  , name
  , description
  , meta
  , start_tasks
  , is_published
  , is_archived
  , allow_all_forms
  , allow_forms
  , created_at
  , updated_at
`

func (r *ConfigRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer r.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, rows.Err()
}

func (r *ConfigRepository) WorkflowBySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE slug = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("WorkflowBySlug", "workflow", slug, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *ConfigRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	metaJSON, err := json.Marshal(workflow.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow meta: %w", err)
	}

	query := `
		INSERT INTO workflows (slug, name, description, meta, start_tasks,
			is_published, is_archived, allow_all_forms, allow_forms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			meta = EXCLUDED.meta,
			start_tasks = EXCLUDED.start_tasks,
			is_published = EXCLUDED.is_published,
			is_archived = EXCLUDED.is_archived,
			allow_all_forms = EXCLUDED.allow_all_forms,
			allow_forms = EXCLUDED.allow_forms,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.Slug,
		workflow.Name,
		workflow.Description,
		metaJSON,
		pq.Array(workflow.StartTasks),
		workflow.IsPublished,
		workflow.IsArchived,
		workflow.AllowAllForms,
		pq.Array(workflow.AllowForms),
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (r *ConfigRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `SELECT id, next, created_at FROM flows WHERE id = $1`

	flow := &models.Flow{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(&flow.ID, &flow.Next, &flow.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("FlowByID", "flow", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (r *ConfigRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO flows (id, next, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET next = EXCLUDED.next
	`

	_, err := r.db.ExecContext(ctx, query, flow.ID, flow.Next, flow.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}

func (r *ConfigRepository) SaveTaskFlow(ctx context.Context, taskFlow *models.TaskFlow) error {
	if taskFlow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task flow ID: %w", err)
		}

		taskFlow.ID = id.String()
	}

	if taskFlow.CreatedAt.IsZero() {
		taskFlow.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO task_flows (id, workflow_slug, task_slug, flow_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		taskFlow.ID,
		taskFlow.WorkflowSlug,
		taskFlow.TaskSlug,
		taskFlow.FlowID,
		taskFlow.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewStoreError(
				"SaveTaskFlow", "task_flow", taskFlow.TaskSlug, persistence.ErrConflictingEdge)
		}

		return fmt.Errorf("failed to save task flow: %w", err)
	}

	return nil
}

func (r *ConfigRepository) TaskFlowByTask(ctx context.Context, workflowSlug, taskSlug string) (*models.TaskFlow, error) {
	query := `
		SELECT id, workflow_slug, task_slug, flow_id, created_at
		FROM task_flows
		WHERE workflow_slug = $1 AND task_slug = $2
	`

	taskFlow := &models.TaskFlow{}

	err := r.db.QueryRowContext(ctx, query, workflowSlug, taskSlug).Scan(
		&taskFlow.ID, &taskFlow.WorkflowSlug, &taskFlow.TaskSlug, &taskFlow.FlowID, &taskFlow.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No outgoing edge is a legal graph state, not an error.
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan task flow: %w", err)
	}

	return taskFlow, nil
}

func (r *ConfigRepository) TaskFlowsByFlow(ctx context.Context, flowID string) ([]*models.TaskFlow, error) {
	query := `
		SELECT id, workflow_slug, task_slug, flow_id, created_at
		FROM task_flows
		WHERE flow_id = $1
		ORDER BY task_slug
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task flows: %w", err)
	}
	defer r.closeRows(ctx, rows)

	taskFlows := make([]*models.TaskFlow, 0)

	for rows.Next() {
		taskFlow := &models.TaskFlow{}

		err := rows.Scan(&taskFlow.ID, &taskFlow.WorkflowSlug, &taskFlow.TaskSlug, &taskFlow.FlowID, &taskFlow.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task flow: %w", err)
		}

		taskFlows = append(taskFlows, taskFlow)
	}

	return taskFlows, rows.Err()
}

func (r *ConfigRepository) FormBySlug(ctx context.Context, slug string) (*models.Form, error) {
	query := `SELECT slug, name, schema FROM forms WHERE slug = $1`

	form := &models.Form{}

	var schemaJSON []byte

	err := r.db.QueryRowContext(ctx, query, slug).Scan(&form.Slug, &form.Name, &schemaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("FormBySlug", "form", slug, persistence.ErrFormNotFound)
		}

		return nil, fmt.Errorf("failed to scan form: %w", err)
	}

	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &form.Schema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal form schema: %w", err)
		}
	}

	return form, nil
}

func (r *ConfigRepository) SaveForm(ctx context.Context, form *models.Form) error {
	var schemaJSON []byte

	if form.Schema != nil {
		var err error

		schemaJSON, err = json.Marshal(form.Schema)
		if err != nil {
			return fmt.Errorf("failed to marshal form schema: %w", err)
		}
	}

	query := `
		INSERT INTO forms (slug, name, schema)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			schema = EXCLUDED.schema
	`

	_, err := r.db.ExecContext(ctx, query, form.Slug, form.Name, schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to save form: %w", err)
	}

	return nil
}

func (r *ConfigRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}

	var metaJSON []byte

	err := row.Scan(
		&task.Slug,
		&task.Name,
		&task.Description,
		&task.Type,
		&metaJSON,
		&task.AddressGroups,
		&task.ControlGroups,
		&task.FormSlug,
		&task.LeadTime,
		&task.IsMultipleInstance,
		&task.IsArchived,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metaJSON, &task.Meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task meta: %w", err)
	}

	return task, nil
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	var metaJSON []byte

	err := row.Scan(
		&workflow.Slug,
		&workflow.Name,
		&workflow.Description,
		&metaJSON,
		pq.Array(&workflow.StartTasks),
		&workflow.IsPublished,
		&workflow.IsArchived,
		&workflow.AllowAllForms,
		pq.Array(&workflow.AllowForms),
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metaJSON, &workflow.Meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow meta: %w", err)
	}

	return workflow, nil
}
