package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// Repository is the read side used by the HTTP surface and the CLI.
type Repository struct {
	persistence persistence.Persistence
}

func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("fetch", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Create stores def as a new workflow. A missing id is generated and timestamps are set. An id already in use
// is a DuplicateEntity error.
func (r *Repository) Create(ctx context.Context, def models.WorkflowDefinition) (*models.Workflow, error) {
	if def.ID == "" {
		def.ID = uuid.New().String()
	} else {
		existing, err := r.persistence.WorkflowByID(ctx, def.ID)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			return nil, models.NewDuplicateError("workflow %s already exists", def.ID)
		}
	}

	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	workflow, err := models.NewWorkflow(def)
	if err != nil {
		return nil, err
	}

	if err := r.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.FetchByID(ctx, id); err != nil {
		return err
	}

	return r.persistence.DeleteWorkflow(ctx, id)
}

func (r *Repository) Execution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := r.persistence.ExecutionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.NewExecutionError("fetch", id, persistence.ErrExecutionNotFound)
	}

	return execution, nil
}

func (r *Repository) Executions(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	executions, err := r.persistence.ExecutionsByWorkflow(ctx, workflowID)
	if err != nil {
		return make([]*models.WorkflowExecution, 0), err
	}

	return executions, nil
}
