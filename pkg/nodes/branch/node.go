// Package branch provides the branch step, which picks the next step from an expression.
package branch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/nodes/set"
	"github.com/dukex/stepflow/pkg/protocol"
)

// BranchStep evaluates config.expression. A boolean result selects config.then or config.else, a string
// result names the next step directly.
type BranchStep struct {
	expression string
	then       string
	otherwise  string
}

// NewBranchStep parses the step config.
func NewBranchStep(config map[string]any) (*BranchStep, error) {
	expr, ok := config["expression"].(string)
	if !ok || expr == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	then, _ := config["then"].(string)
	otherwise, _ := config["else"].(string)

	return &BranchStep{expression: expr, then: then, otherwise: otherwise}, nil
}

// Execute evaluates the expression and requests the chosen step. When no target applies the run falls
// through to the outgoing edges.
func (s *BranchStep) Execute(_ context.Context, rt protocol.Runtime, evaluator *expression.Evaluator) (protocol.Result, error) {
	value, err := evaluator.Evaluate(s.expression, set.Env(rt))
	if err != nil {
		return protocol.NoResult(), fmt.Errorf("branch %s: %w", rt.Step.ID, err)
	}

	var next string

	switch v := value.(type) {
	case string:
		next = v
	default:
		truthy, err := expression.Truthy(v)
		if err != nil {
			return protocol.NoResult(), fmt.Errorf("branch %s: %w", rt.Step.ID, err)
		}

		next = s.otherwise
		if truthy {
			next = s.then
		}
	}

	outputs := map[string]any{"result": value, "next": next}
	if next == "" {
		return protocol.Outputs(outputs), nil
	}

	return protocol.NextWithOutputs(next, outputs), nil
}
