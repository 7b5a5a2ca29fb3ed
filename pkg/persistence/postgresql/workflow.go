package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Workflows returns every live workflow, newest first.
func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , definition
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		var (
			id   string
			body []byte
		)

		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflow, err := persistence.DecodeWorkflow(id, body)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// WorkflowByID returns nil without error when the workflow does not exist or was deleted.
func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT definition
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	var body []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return persistence.DecodeWorkflow(id, body)
}

// SaveWorkflow inserts or replaces a workflow snapshot. Saving a deleted id brings it back.
func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	body, err := persistence.EncodeWorkflow(workflow)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	createdAt := workflow.Definition().CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO workflows (id, name, definition, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.ExecContext(ctx, query, workflow.ID(), workflow.Name(), body, createdAt, now)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID(), err)
	}

	return nil
}

// DeleteWorkflow soft deletes a workflow by setting its deleted_at timestamp.
func (r *WorkflowRepository) DeleteWorkflow(ctx context.Context, id string) error {
	query := `UPDATE workflows SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}
