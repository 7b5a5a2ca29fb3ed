package branch

import (
	"context"

	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/protocol"
)

// BranchStepFactory registers the branch step.
type BranchStepFactory struct {
	evaluator *expression.Evaluator
}

func (f *BranchStepFactory) ID() string {
	return "branch"
}

func (f *BranchStepFactory) Name() string {
	return "Branch"
}

func (f *BranchStepFactory) Description() string {
	return "Chooses the next step from an expression over run variables"
}

func (f *BranchStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression returning a step id, or a boolean selecting then/else",
				"examples":    []string{"variables.loggedIn", "variables.count > 3 ? 'done' : 'retry'"},
			},
			"then": map[string]any{
				"type":        "string",
				"description": "Step id taken when the expression is truthy",
			},
			"else": map[string]any{
				"type":        "string",
				"description": "Step id taken when the expression is falsy",
			},
		},
		"required": []string{"expression"},
	}
}

func (f *BranchStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		step, err := NewBranchStep(rt.Step.Config)
		if err != nil {
			return protocol.NoResult(), err
		}

		return step.Execute(ctx, rt, f.evaluator)
	}
}

func NewBranchStepFactory() protocol.StepFactory {
	return &BranchStepFactory{evaluator: expression.NewEvaluator()}
}
