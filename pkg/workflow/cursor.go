package workflow

import (
	"context"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/protocol"
)

// AdvanceContext carries what the last step produced so edge evaluators can decide where to go next.
type AdvanceContext struct {
	Step          models.Step
	Outputs       any
	HandlerResult protocol.Result
	Meta          protocol.StepMeta
	Variables     map[string]any
	Execution     *models.WorkflowExecution
	Session       protocol.Session
}

// EdgeEvaluator decides whether an edge leaving fromID is taken.
type EdgeEvaluator func(ctx context.Context, edge models.Edge, fromID string, plan *Plan, advCtx AdvanceContext) bool

// DefaultEdgeEvaluator takes only unconditional edges. Conditional branching needs an evaluator that
// understands conditions, such as ConditionEvaluator.
func DefaultEdgeEvaluator(_ context.Context, edge models.Edge, _ string, _ *Plan, _ AdvanceContext) bool {
	return edge.Condition == nil
}

// Cursor is the traversal pointer of one run over a Plan.
type Cursor struct {
	plan      *Plan
	evaluator EdgeEvaluator
	currentID string
}

// NewCursor positions a cursor at the plan start. A nil evaluator means DefaultEdgeEvaluator.
func NewCursor(plan *Plan, evaluator EdgeEvaluator) *Cursor {
	if evaluator == nil {
		evaluator = DefaultEdgeEvaluator
	}

	return &Cursor{
		plan:      plan,
		evaluator: evaluator,
		currentID: plan.StartID(),
	}
}

// Plan returns the plan the cursor walks.
func (c *Cursor) Plan() *Plan { return c.plan }

// CurrentID returns the current step id, empty once the cursor is finished.
func (c *Cursor) CurrentID() string { return c.currentID }

// Finished reports whether the run has no more steps.
func (c *Cursor) Finished() bool { return c.currentID == "" }

// Current returns the current step.
func (c *Cursor) Current() (models.Step, bool) {
	if c.Finished() {
		return models.Step{}, false
	}

	step, err := c.plan.Step(c.currentID)
	if err != nil {
		return models.Step{}, false
	}

	return step, true
}

// Advance moves the cursor and returns the new current step. An explicit requestedNextID wins over edges, a
// taken edge wins over declaration order.
func (c *Cursor) Advance(ctx context.Context, requestedNextID string, advCtx AdvanceContext) (models.Step, bool, error) {
	nextID, err := c.nextID(ctx, requestedNextID, advCtx)
	if err != nil {
		return models.Step{}, false, err
	}

	c.currentID = nextID

	step, ok := c.Current()

	return step, ok, nil
}

func (c *Cursor) nextID(ctx context.Context, requestedNextID string, advCtx AdvanceContext) (string, error) {
	if requested := strings.TrimSpace(requestedNextID); requested != "" {
		if !c.plan.HasStep(requested) {
			return "", models.NewInvariantViolation("node %s not found in workflow %s", requested, c.plan.Workflow().ID())
		}

		return requested, nil
	}

	if c.Finished() {
		return "", nil
	}

	for _, edge := range c.plan.EdgesFrom(c.currentID) {
		if !c.evaluator(ctx, edge, c.currentID, c.plan, advCtx) {
			continue
		}

		if edge.IsTerminal() {
			return "", models.NewInvariantViolation("edge %s selected from %s has no target", edge.RouteKey(), c.currentID)
		}

		return edge.To, nil
	}

	next, ok := c.plan.NextSequential(c.currentID)
	if !ok {
		return "", nil
	}

	return next.ID, nil
}
