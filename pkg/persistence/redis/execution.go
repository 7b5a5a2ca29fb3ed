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

// ExecutionRepository keeps each ledger under its own key with an optional TTL and indexes ledgers per workflow
// in a sorted set scored by start time.
type ExecutionRepository struct {
	client *goredis.Client
	keys   keys
	ttl    time.Duration
	logger *slog.Logger
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	data, err := persistence.EncodeExecution(execution)
	if err != nil {
		return err
	}

	score := time.Now().UTC()
	if startedAt := execution.StartedAt(); startedAt != nil {
		score = *startedAt
	}

	index := r.keys.workflowExecutions(execution.WorkflowID())

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keys.execution(execution.ID()), data, r.ttl)
	pipe.ZAdd(ctx, index, goredis.Z{Score: float64(score.UnixNano()), Member: execution.ID()})

	if r.ttl > 0 {
		pipe.Expire(ctx, index, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ID(), err)
	}

	return nil
}

// ExecutionByID returns nil without error when the execution does not exist or expired.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	data, err := r.client.Get(ctx, r.keys.execution(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return persistence.DecodeExecution(id, data)
}

// ExecutionsByWorkflow returns the ledgers of a workflow, most recently started first. Expired ledgers are
// removed from the index as they are found.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	index := r.keys.workflowExecutions(workflowID)

	ids, err := r.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionsByWorkflow", workflowID, err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))
	if len(ids) == 0 {
		return executions, nil
	}

	dataKeys := make([]string, len(ids))
	for i, id := range ids {
		dataKeys[i] = r.keys.execution(id)
	}

	values, err := r.client.MGet(ctx, dataKeys...).Result()
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionsByWorkflow", workflowID, err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			r.logger.DebugContext(ctx, "dropping expired execution from index", "execution_id", ids[i])
			r.client.ZRem(ctx, index, ids[i])

			continue
		}

		execution, err := persistence.DecodeExecution(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
