// Package persistence provides the storage boundary for workflows and execution ledgers.
// Implementations store snapshots and rebuild them through models.NewWorkflow and models.RestoreExecution,
// so every loaded value passes the same invariants as a freshly built one.
package persistence

import (
	"context"

	"github.com/dukex/stepflow/pkg/models"
)

// WorkflowRepository stores validated workflow graphs.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores execution ledgers. Callers serialize writes for one execution id.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}

type Persistence interface {
	WorkflowRepository
	ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
