package switchnode

import (
	"context"

	"github.com/dukex/stepflow/pkg/protocol"
)

// SwitchStepFactory registers the switch step.
type SwitchStepFactory struct{}

func (f *SwitchStepFactory) ID() string {
	return "switch"
}

func (f *SwitchStepFactory) Name() string {
	return "Switch"
}

func (f *SwitchStepFactory) Description() string {
	return "Routes the run to the step whose case matches a rendered value"
}

func (f *SwitchStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":        "string",
				"description": "Template rendered against run variables and compared to each case",
				"examples":    []string{"{{ variables.status }}", "{{ .execution.workflow_id }}"},
			},
			"cases": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value": map[string]any{"description": "Value to match"},
						"next":  map[string]any{"type": "string", "description": "Step taken on a match"},
					},
					"required": []string{"value", "next"},
				},
			},
			"default": map[string]any{
				"type":        "string",
				"description": "Step taken when no case matches",
			},
		},
		"required": []string{"value", "cases"},
	}
}

func (f *SwitchStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		step, err := NewSwitchStep(rt.Step.Config)
		if err != nil {
			return protocol.NoResult(), err
		}

		return step.Execute(ctx, rt)
	}
}

func NewSwitchStepFactory() protocol.StepFactory {
	return &SwitchStepFactory{}
}
