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

// ExecutionRepository handles execution ledger database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// SaveExecution upserts the ledger row of an execution.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	body, err := persistence.EncodeExecution(execution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, record, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID(),
		execution.WorkflowID(),
		string(execution.Status()),
		body,
		execution.StartedAt(),
		time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ID(), err)
	}

	return nil
}

// ExecutionByID returns nil without error when the execution does not exist.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var body []byte

	err := r.db.QueryRowContext(ctx, `SELECT record FROM executions WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return persistence.DecodeExecution(id, body)
}

// ExecutionsByWorkflow returns the ledgers of a workflow, most recently started first.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , record
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC NULLS LAST, id
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		var (
			id   string
			body []byte
		)

		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		execution, err := persistence.DecodeExecution(id, body)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
