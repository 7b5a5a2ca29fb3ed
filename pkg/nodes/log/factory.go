package log

import (
	"context"

	"github.com/dukex/stepflow/pkg/protocol"
)

// LogStepFactory registers the log step.
type LogStepFactory struct{}

// ID returns the factory ID.
func (f *LogStepFactory) ID() string {
	return "log"
}

// Name returns the factory name.
func (f *LogStepFactory) Name() string {
	return "Log"
}

// Description returns the factory description.
func (f *LogStepFactory) Description() string {
	return "Logs a message at a level (debug, info, warn, error) and publishes it to the run event stream"
}

// Schema returns the JSON schema for Log step configuration.
func (f *LogStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Supports {{ variables.name }} and Go templates over .variables.",
				"examples": []string{
					"Page title: {{ variables.title }}",
					"Run {{ .execution.run_id }} reached checkout",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"enum":        []string{"debug", "info", "warn", "error"},
				"default":     "info",
			},
			"target": map[string]any{
				"type":        "string",
				"description": "Channel label attached to the published entry",
				"default":     DefaultTarget,
			},
		},
	}
}

// Handler returns the step handler.
func (f *LogStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		step, err := NewLogStep(rt.Step.Config)
		if err != nil {
			return protocol.NoResult(), err
		}

		return step.Execute(ctx, rt)
	}
}

// NewLogStepFactory creates a new factory instance.
func NewLogStepFactory() protocol.StepFactory {
	return &LogStepFactory{}
}
