package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/registry"
)

// ErrStepPanicked wraps the value recovered from a step handler panic.
var ErrStepPanicked = errors.New("step handler panicked")

// Outcome is the normalized result of one step.
type Outcome struct {
	RequestedNextID string
	Outputs         any
	Result          protocol.Result
}

// NodeRunner dispatches steps to the handler registered for their type.
type NodeRunner struct {
	registry *registry.Registry
}

func NewNodeRunner(reg *registry.Registry) *NodeRunner {
	return &NodeRunner{registry: reg}
}

// Execute runs step with rt. A missing handler is an invariant violation, never retried. A handler panic is
// returned as an error so the run fails like any other step failure.
func (r *NodeRunner) Execute(ctx context.Context, step models.Step, rt protocol.Runtime) (outcome Outcome, err error) {
	if strings.TrimSpace(step.Type) == "" {
		return Outcome{}, models.NewValidationError("workflow step type is required")
	}

	if step.ID != "" && strings.TrimSpace(step.ID) == "" {
		return Outcome{}, models.NewValidationError("workflow step id must contain a non-whitespace character")
	}

	handler, ok := r.registry.Handler(step.Type)
	if !ok {
		return Outcome{}, models.NewInvariantViolation("no handler registered for node type %q", step.Type)
	}

	rt.Step = step

	defer func() {
		if rec := recover(); rec != nil {
			outcome = Outcome{}
			err = fmt.Errorf("%w: %v", ErrStepPanicked, rec)
		}
	}()

	result, err := handler(ctx, rt)
	if err != nil {
		return Outcome{}, err
	}

	outcome = Outcome{Result: result}
	outcome.RequestedNextID, _ = result.NextID()
	outcome.Outputs, _ = result.Data()

	return outcome, nil
}
