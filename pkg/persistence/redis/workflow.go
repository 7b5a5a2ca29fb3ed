package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// WorkflowRepository keeps each workflow under its own key and orders them in a sorted set by creation time.
type WorkflowRepository struct {
	client *goredis.Client
	keys   keys
	logger *slog.Logger
}

// Workflows returns every stored workflow, newest first. Stale index entries are dropped.
func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := r.client.ZRevRange(ctx, r.keys.workflows(), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewWorkflowError("Workflows", "", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workflow == nil {
			r.client.ZRem(ctx, r.keys.workflows(), id)

			continue
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// WorkflowByID returns nil without error when the workflow does not exist.
func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := r.client.Get(ctx, r.keys.workflow(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return persistence.DecodeWorkflow(id, data)
}

// SaveWorkflow writes the snapshot and indexes it. The index keeps the score of the first save.
func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	data, err := persistence.EncodeWorkflow(workflow)
	if err != nil {
		return err
	}

	createdAt := workflow.Definition().CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keys.workflow(workflow.ID()), data, 0)
	pipe.ZAddNX(ctx, r.keys.workflows(), goredis.Z{Score: float64(createdAt.UnixNano()), Member: workflow.ID()})

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID(), err)
	}

	return nil
}

// DeleteWorkflow removes the workflow. Deleting a missing id is not an error.
func (r *WorkflowRepository) DeleteWorkflow(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.keys.workflow(id))
	pipe.ZRem(ctx, r.keys.workflows(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}
