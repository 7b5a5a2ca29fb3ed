package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository handles execution ledger file operations.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	if err := validateID(execution.ID()); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ID(), err)
	}

	data, err := persistence.EncodeExecution(execution)
	if err != nil {
		return err
	}

	if err := writeDocument(er.root, executionsDir, execution.ID(), data); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ID(), err)
	}

	return nil
}

// ExecutionByID returns nil without error when the execution does not exist.
func (er *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	body, err := readDocument(er.root, executionsDir, id)
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	if body == nil {
		return nil, nil
	}

	return persistence.DecodeExecution(id, body)
}

// ExecutionsByWorkflow returns the ledgers of a workflow, most recently started first.
func (er *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	ids, err := listDocuments(er.root, executionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, id := range ids {
		execution, err := er.ExecutionByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if execution != nil && execution.WorkflowID() == workflowID {
			executions = append(executions, execution)
		}
	}

	sortByStart(executions)

	return executions, nil
}

func sortByStart(executions []*models.WorkflowExecution) {
	sort.SliceStable(executions, func(i, j int) bool {
		a, b := executions[i].StartedAt(), executions[j].StartedAt()

		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
