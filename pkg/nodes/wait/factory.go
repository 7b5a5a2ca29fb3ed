package wait

import (
	"context"

	"github.com/dukex/stepflow/pkg/protocol"
)

// WaitStepFactory registers the wait step.
type WaitStepFactory struct{}

func (f *WaitStepFactory) ID() string {
	return "wait"
}

func (f *WaitStepFactory) Name() string {
	return "Wait"
}

func (f *WaitStepFactory) Description() string {
	return "Pauses the run for a number of milliseconds"
}

func (f *WaitStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"durationMs": map[string]any{
				"type":        "number",
				"description": "Pause length in milliseconds",
				"minimum":     0,
				"default":     1000,
			},
		},
	}
}

func (f *WaitStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		return NewWaitStep(rt.Step.Config).Execute(ctx, rt)
	}
}

func NewWaitStepFactory() protocol.StepFactory {
	return &WaitStepFactory{}
}
