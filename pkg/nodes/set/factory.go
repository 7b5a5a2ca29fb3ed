package set

import (
	"context"

	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/protocol"
)

// SetStepFactory registers the set step. Compiled expressions are cached per factory.
type SetStepFactory struct {
	evaluator *expression.Evaluator
}

func (f *SetStepFactory) ID() string {
	return "set"
}

func (f *SetStepFactory) Name() string {
	return "Set Variable"
}

func (f *SetStepFactory) Description() string {
	return "Stores a literal or an evaluated expression in a run variable"
}

func (f *SetStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"as": map[string]any{
				"type":        "string",
				"description": "Variable name to assign",
			},
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression evaluated against variables, runId and stepId",
				"examples":    []string{"variables.count + 1", "upper(variables.title)"},
			},
			"value": map[string]any{
				"description": "Literal value used when no expression is given",
			},
		},
		"required": []string{"as"},
	}
}

func (f *SetStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		step, err := NewSetStep(rt.Step.Config)
		if err != nil {
			return protocol.NoResult(), err
		}

		return step.Execute(ctx, rt, f.evaluator)
	}
}

func NewSetStepFactory() protocol.StepFactory {
	return &SetStepFactory{evaluator: expression.NewEvaluator()}
}
