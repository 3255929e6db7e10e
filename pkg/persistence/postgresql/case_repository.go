package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflow/caseflow/pkg/models"
	"github.com/caseflow/caseflow/pkg/persistence"
)

// CaseRepository handles case-related database operations.
type CaseRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCaseRepository(db *sql.DB, logger *slog.Logger) *CaseRepository {
	return &CaseRepository{db: db, logger: logger}
}

const caseColumns = `
	id
  , workflow_slug
  , status
  , family_id
  , meta
  , document
  , form_slug
  , closed_at
  , closed_by_user
  , closed_by_group
  , created_at
  , updated_at
`

func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	kase, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("CaseByID", "case", id, persistence.ErrCaseNotFound)
		}

		return nil, fmt.Errorf("failed to scan case: %w", err)
	}

	return kase, nil
}

func (r *CaseRepository) GetByWorkflow(ctx context.Context, workflowSlug string) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE workflow_slug = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, workflowSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	cases := make([]*models.Case, 0)

	for rows.Next() {
		kase, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}

		cases = append(cases, kase)
	}

	return cases, rows.Err()
}

func (r *CaseRepository) Save(ctx context.Context, kase *models.Case) error {
	query := `
		INSERT INTO cases (id, workflow_slug, status, family_id, meta, document,
			form_slug, closed_at, closed_by_user, closed_by_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			meta = EXCLUDED.meta,
			document = EXCLUDED.document,
			closed_at = EXCLUDED.closed_at,
			closed_by_user = EXCLUDED.closed_by_user,
			closed_by_group = EXCLUDED.closed_by_group,
			updated_at = EXCLUDED.updated_at
	`

	args, err := caseArgs(kase)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}

	return nil
}

// CloseFromRunning persists a terminal transition with a conditional update:
// the row is only written when it is still running, so concurrent closers
// cannot both succeed.
func (r *CaseRepository) CloseFromRunning(ctx context.Context, kase *models.Case) error {
	query := `
		UPDATE cases SET
			status = $2,
			closed_at = $3,
			closed_by_user = $4,
			closed_by_group = $5,
			updated_at = $6
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query,
		kase.ID,
		kase.Status,
		kase.ClosedAt,
		kase.ClosedByUser,
		kase.ClosedByGroup,
		kase.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to close case: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("CloseCase", "case", kase.ID, persistence.ErrInvalidTransition)
	}

	return nil
}

func caseArgs(kase *models.Case) ([]any, error) {
	metaJSON, err := json.Marshal(kase.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal case meta: %w", err)
	}

	var documentJSON []byte

	if kase.Document != nil {
		documentJSON, err = json.Marshal(kase.Document)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal case document: %w", err)
		}
	}

	return []any{
		kase.ID,
		kase.WorkflowSlug,
		kase.Status,
		kase.FamilyID,
		metaJSON,
		documentJSON,
		kase.FormSlug,
		kase.ClosedAt,
		kase.ClosedByUser,
		kase.ClosedByGroup,
		kase.CreatedAt,
		kase.UpdatedAt,
	}, nil
}

func scanCase(row rowScanner) (*models.Case, error) {
	kase := &models.Case{}

	var (
		metaJSON     []byte
		documentJSON []byte
		closedAt     sql.NullTime
	)

	err := row.Scan(
		&kase.ID,
		&kase.WorkflowSlug,
		&kase.Status,
		&kase.FamilyID,
		&metaJSON,
		&documentJSON,
		&kase.FormSlug,
		&closedAt,
		&kase.ClosedByUser,
		&kase.ClosedByGroup,
		&kase.CreatedAt,
		&kase.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if closedAt.Valid {
		closed := closedAt.Time

		kase.ClosedAt = &closed
	}

	if err := json.Unmarshal(metaJSON, &kase.Meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case meta: %w", err)
	}

	if len(documentJSON) > 0 {
		if err := json.Unmarshal(documentJSON, &kase.Document); err != nil {
			return nil, fmt.Errorf("failed to unmarshal case document: %w", err)
		}
	}

	return kase, nil
}
