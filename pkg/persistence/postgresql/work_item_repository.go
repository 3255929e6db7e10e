package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// WorkItemRepository handles work-item-related database operations.
type WorkItemRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkItemRepository(db *sql.DB, logger *slog.Logger) *WorkItemRepository {
	return &WorkItemRepository{db: db, logger: logger}
}

const workItemColumns = `
	id
  , case_id
  , task_slug
  , status
  , name
  , description
  , meta
  , document
  , addressed_groups
  , controlling_groups
  , assigned_users
  , child_case_id
  , deadline
  , closed_at
  , closed_by_user
  , closed_by_group
  , created_at
  , updated_at
`

func (r *WorkItemRepository) GetByID(ctx context.Context, id string) (*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`

	workItem, err := scanWorkItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("WorkItemByID", "work_item", id, persistence.ErrWorkItemNotFound)
		}

		return nil, fmt.Errorf("failed to scan work item: %w", err)
	}

	return workItem, nil
}

func (r *WorkItemRepository) GetByCase(ctx context.Context, caseID string) ([]*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE case_id = $1 ORDER BY created_at`

	return r.queryWorkItems(ctx, query, caseID)
}

// GetByCaseTaskStatus filters work items of a case by task and status. An
// empty taskSlug matches all tasks.
func (r *WorkItemRepository) GetByCaseTaskStatus(
	ctx context.Context, caseID, taskSlug string, status models.WorkItemStatus,
) ([]*models.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE case_id = $1
		  AND ($2 = '' OR task_slug = $2)
		  AND status = $3
		ORDER BY created_at
	`

	return r.queryWorkItems(ctx, query, caseID, taskSlug, string(status))
}

func (r *WorkItemRepository) queryWorkItems(ctx context.Context, query string, args ...any) ([]*models.WorkItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workItems := make([]*models.WorkItem, 0)

	for rows.Next() {
		workItem, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}

		workItems = append(workItems, workItem)
	}

	return workItems, rows.Err()
}

func (r *WorkItemRepository) Save(ctx context.Context, workItem *models.WorkItem) error {
	query := `
		INSERT INTO work_items (id, case_id, task_slug, status, name, description,
			meta, document, addressed_groups, controlling_groups, assigned_users,
			child_case_id, deadline, closed_at, closed_by_user, closed_by_group,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			meta = EXCLUDED.meta,
			document = EXCLUDED.document,
			addressed_groups = EXCLUDED.addressed_groups,
			controlling_groups = EXCLUDED.controlling_groups,
			assigned_users = EXCLUDED.assigned_users,
			child_case_id = EXCLUDED.child_case_id,
			deadline = EXCLUDED.deadline,
			closed_at = EXCLUDED.closed_at,
			closed_by_user = EXCLUDED.closed_by_user,
			closed_by_group = EXCLUDED.closed_by_group,
			updated_at = EXCLUDED.updated_at
	`

	args, err := workItemArgs(workItem)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save work item: %w", err)
	}

	return nil
}

// CloseFromReady persists a terminal transition with a conditional update:
// concurrent completion attempts race on the WHERE clause and exactly one
// wins.
func (r *WorkItemRepository) CloseFromReady(ctx context.Context, workItem *models.WorkItem) error {
	query := `
		UPDATE work_items SET
			status = $2,
			document = $3,
			closed_at = $4,
			closed_by_user = $5,
			closed_by_group = $6,
			updated_at = $7
		WHERE id = $1 AND status = 'ready'
	`

	var documentJSON []byte

	if workItem.Document != nil {
		var err error

		documentJSON, err = json.Marshal(workItem.Document)
		if err != nil {
			return fmt.Errorf("failed to marshal work item document: %w", err)
		}
	}

	result, err := r.db.ExecContext(ctx, query,
		workItem.ID,
		workItem.Status,
		documentJSON,
		workItem.ClosedAt,
		workItem.ClosedByUser,
		workItem.ClosedByGroup,
		workItem.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to close work item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("CloseWorkItem", "work_item", workItem.ID, persistence.ErrInvalidTransition)
	}

	return nil
}

func workItemArgs(workItem *models.WorkItem) ([]any, error) {
	metaJSON, err := json.Marshal(workItem.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal work item meta: %w", err)
	}

	var documentJSON []byte

	if workItem.Document != nil {
		documentJSON, err = json.Marshal(workItem.Document)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal work item document: %w", err)
		}
	}

	var childCaseID *string
	if workItem.ChildCaseID != "" {
		childCaseID = &workItem.ChildCaseID
	}

	return []any{
		workItem.ID,
		workItem.CaseID,
		workItem.TaskSlug,
		workItem.Status,
		workItem.Name,
		workItem.Description,
		metaJSON,
		documentJSON,
		pq.Array(workItem.AddressedGroups),
		pq.Array(workItem.ControllingGroups),
		pq.Array(workItem.AssignedUsers),
		childCaseID,
		workItem.Deadline,
		workItem.ClosedAt,
		workItem.ClosedByUser,
		workItem.ClosedByGroup,
		workItem.CreatedAt,
		workItem.UpdatedAt,
	}, nil
}

func scanWorkItem(row rowScanner) (*models.WorkItem, error) {
	workItem := &models.WorkItem{}

	var (
		metaJSON     []byte
		documentJSON []byte
		childCaseID  sql.NullString
		deadline     sql.NullTime
		closedAt     sql.NullTime
	)

	err := row.Scan(
		&workItem.ID,
		&workItem.CaseID,
		&workItem.TaskSlug,
		&workItem.Status,
		&workItem.Name,
		&workItem.Description,
		&metaJSON,
		&documentJSON,
		pq.Array(&workItem.AddressedGroups),
		pq.Array(&workItem.ControllingGroups),
		pq.Array(&workItem.AssignedUsers),
		&childCaseID,
		&deadline,
		&closedAt,
		&workItem.ClosedByUser,
		&workItem.ClosedByGroup,
		&workItem.CreatedAt,
		&workItem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if childCaseID.Valid {
		workItem.ChildCaseID = childCaseID.String
	}

	if deadline.Valid {
		value := deadline.Time

		workItem.Deadline = &value
	}

	if closedAt.Valid {
		value := closedAt.Time

		workItem.ClosedAt = &value
	}

	if err := json.Unmarshal(metaJSON, &workItem.Meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item meta: %w", err)
	}

	if len(documentJSON) > 0 {
		if err := json.Unmarshal(documentJSON, &workItem.Document); err != nil {
			return nil, fmt.Errorf("failed to unmarshal work item document: %w", err)
		}
	}

	return workItem, nil
}
