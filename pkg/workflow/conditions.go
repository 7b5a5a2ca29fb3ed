package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/models"
)

// ConditionEvaluator takes unconditional edges and evaluates expression conditions against the run state.
// Any other condition type, and any evaluation error, means the edge is not taken.
type ConditionEvaluator struct {
	evaluator  *expression.Evaluator
	logger     *slog.Logger
	runID      string
	workflowID string
}

func NewConditionEvaluator(evaluator *expression.Evaluator, logger *slog.Logger, runID, workflowID string) *ConditionEvaluator {
	if evaluator == nil {
		evaluator = expression.NewEvaluator()
	}

	return &ConditionEvaluator{
		evaluator:  evaluator,
		logger:     logger,
		runID:      runID,
		workflowID: workflowID,
	}
}

// Evaluate has the EdgeEvaluator signature.
func (c *ConditionEvaluator) Evaluate(ctx context.Context, edge models.Edge, fromID string, _ *Plan, advCtx AdvanceContext) bool {
	if edge.Condition == nil {
		return true
	}

	switch edge.Condition.Type {
	case models.ConditionTypeExpression:
		source := edge.Condition.Expression
		if strings.TrimSpace(source) == "" {
			return false
		}

		taken, err := c.evaluator.EvaluateBool(source, map[string]any{"state": c.state(edge.Condition, advCtx)})
		if err != nil {
			c.logger.WarnContext(ctx, "Failed to evaluate edge condition",
				"edge", edge.RouteKey(),
				"from", fromID,
				"error", err,
			)

			return false
		}

		return taken
	default:
		c.logger.WarnContext(ctx, "Unsupported edge condition type",
			"edge", edge.RouteKey(),
			"condition_type", edge.Condition.Type,
		)

		return false
	}
}

func (c *ConditionEvaluator) state(condition *models.Condition, advCtx AdvanceContext) map[string]any {
	handlerResult, _ := advCtx.HandlerResult.Data()
	if next, ok := advCtx.HandlerResult.NextID(); ok {
		handlerResult = map[string]any{"nextStepId": next, "outputs": handlerResult}
	}

	variables := advCtx.Variables
	if variables == nil {
		variables = map[string]any{}
	}

	parameters := condition.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}

	return map[string]any{
		"outputs":       plain(advCtx.Outputs),
		"handlerResult": plain(handlerResult),
		"meta":          plain(advCtx.Meta),
		"variables":     plain(variables),
		"execution":     plain(models.NewExecutionView(advCtx.Execution)),
		"step":          plain(advCtx.Step),
		"runId":         c.runID,
		"workflowId":    c.workflowID,
		"parameters":    plain(parameters),
	}
}

// plain turns handler values into maps, slices and scalars so expressions can address them by their JSON
// field names. Values that cannot be encoded are passed through.
func plain(v any) any {
	if v == nil {
		return nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}

	return out
}
