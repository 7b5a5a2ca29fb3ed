package transform

import (
	"context"

	"github.com/dukex/stepflow/pkg/protocol"
)

// TransformStepFactory registers the transform step.
type TransformStepFactory struct{}

func (f *TransformStepFactory) ID() string {
	return "transform"
}

func (f *TransformStepFactory) Name() string {
	return "Transform"
}

func (f *TransformStepFactory) Description() string {
	return "Renders a Go template over run variables into JSON, a number, a boolean or text"
}

func (f *TransformStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{
				"type":        "string",
				"description": "Go template over .variables, .execution and .env",
				"examples": []string{
					`{"user": "{{ .variables.username }}", "at": "{{ now }}"}`,
					"{{ len .variables.items }}",
				},
			},
			"as": map[string]any{
				"type":        "string",
				"description": "Variable receiving the result",
			},
		},
		"required": []string{"template"},
	}
}

func (f *TransformStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		step, err := NewTransformStep(rt.Step.Config)
		if err != nil {
			return protocol.NoResult(), err
		}

		return step.Execute(ctx, rt)
	}
}

func NewTransformStepFactory() protocol.StepFactory {
	return &TransformStepFactory{}
}
