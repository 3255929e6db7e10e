// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // database/sql driver

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	configRepo   *ConfigRepository
	caseRepo     *CaseRepository
	workItemRepo *WorkItemRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		configRepo:   NewConfigRepository(database, logger),
		caseRepo:     NewCaseRepository(database, logger),
		workItemRepo: NewWorkItemRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Tasks(ctx context.Context) ([]*models.Task, error) {
	return p.configRepo.Tasks(ctx)
}

func (p *Persistence) TaskBySlug(ctx context.Context, slug string) (*models.Task, error) {
	return p.configRepo.TaskBySlug(ctx, slug)
}

func (p *Persistence) TasksBySlugs(ctx context.Context, slugs []string) ([]*models.Task, error) {
	return p.configRepo.TasksBySlugs(ctx, slugs)
}

func (p *Persistence) SaveTask(ctx context.Context, task *models.Task) error {
	return p.configRepo.SaveTask(ctx, task)
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.configRepo.Workflows(ctx)
}

func (p *Persistence) WorkflowBySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	return p.configRepo.WorkflowBySlug(ctx, slug)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.configRepo.SaveWorkflow(ctx, workflow)
}

func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return p.configRepo.FlowByID(ctx, id)
}

func (p *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	return p.configRepo.SaveFlow(ctx, flow)
}

func (p *Persistence) SaveTaskFlow(ctx context.Context, taskFlow *models.TaskFlow) error {
	return p.configRepo.SaveTaskFlow(ctx, taskFlow)
}

func (p *Persistence) TaskFlowByTask(ctx context.Context, workflowSlug, taskSlug string) (*models.TaskFlow, error) {
	return p.configRepo.TaskFlowByTask(ctx, workflowSlug, taskSlug)
}

func (p *Persistence) TaskFlowsByFlow(ctx context.Context, flowID string) ([]*models.TaskFlow, error) {
	return p.configRepo.TaskFlowsByFlow(ctx, flowID)
}

func (p *Persistence) FormBySlug(ctx context.Context, slug string) (*models.Form, error) {
	return p.configRepo.FormBySlug(ctx, slug)
}

func (p *Persistence) SaveForm(ctx context.Context, form *models.Form) error {
	return p.configRepo.SaveForm(ctx, form)
}

func (p *Persistence) CaseByID(ctx context.Context, id string) (*models.Case, error) {
	return p.caseRepo.GetByID(ctx, id)
}

func (p *Persistence) CasesByWorkflow(ctx context.Context, workflowSlug string) ([]*models.Case, error) {
	return p.caseRepo.GetByWorkflow(ctx, workflowSlug)
}

func (p *Persistence) SaveCase(ctx context.Context, kase *models.Case) error {
	return p.caseRepo.Save(ctx, kase)
}

func (p *Persistence) CloseCase(ctx context.Context, kase *models.Case) error {
	return p.caseRepo.CloseFromRunning(ctx, kase)
}

func (p *Persistence) WorkItemByID(ctx context.Context, id string) (*models.WorkItem, error) {
	return p.workItemRepo.GetByID(ctx, id)
}

func (p *Persistence) WorkItemsByCase(ctx context.Context, caseID string) ([]*models.WorkItem, error) {
	return p.workItemRepo.GetByCase(ctx, caseID)
}

func (p *Persistence) WorkItemsByCaseTaskStatus(
	ctx context.Context, caseID, taskSlug string, status models.WorkItemStatus,
) ([]*models.WorkItem, error) {
	return p.workItemRepo.GetByCaseTaskStatus(ctx, caseID, taskSlug, status)
}

func (p *Persistence) OpenWorkItemsByCase(ctx context.Context, caseID string) ([]*models.WorkItem, error) {
	return p.workItemRepo.GetByCaseTaskStatus(ctx, caseID, "", models.WorkItemStatusReady)
}

func (p *Persistence) SaveWorkItem(ctx context.Context, workItem *models.WorkItem) error {
	return p.workItemRepo.Save(ctx, workItem)
}

func (p *Persistence) CloseWorkItem(ctx context.Context, workItem *models.WorkItem) error {
	return p.workItemRepo.CloseFromReady(ctx, workItem)
}
