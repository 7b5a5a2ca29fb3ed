// Package transform provides the transform step, which renders a template into structured data.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/template"
)

// TransformStep renders config.template against run variables. Output that parses as JSON, a number or a
// boolean is decoded, and the result is stored in config.as when set.
type TransformStep struct {
	template string
	as       string
}

// NewTransformStep parses the step config.
func NewTransformStep(config map[string]any) (*TransformStep, error) {
	tmpl, ok := config["template"].(string)
	if !ok || tmpl == "" {
		return nil, errors.New("missing required field 'template'")
	}

	as, _ := config["as"].(string)

	return &TransformStep{template: tmpl, as: as}, nil
}

func (s *TransformStep) Execute(_ context.Context, rt protocol.Runtime) (protocol.Result, error) {
	vars := map[string]any{}
	if rt.Execution != nil {
		vars = rt.Execution.Variables()
	}

	result, err := template.RenderWithContext(s.template, template.Context{
		RunID:      rt.RunID,
		WorkflowID: rt.WorkflowID,
		StepID:     rt.Step.ID,
		Variables:  vars,
	})
	if err != nil {
		return protocol.NoResult(), fmt.Errorf("transformation failed: %w", err)
	}

	if s.as != "" && rt.Execution != nil {
		rt.Execution.SetVar(s.as, result)
	}

	return protocol.Outputs(map[string]any{"result": result}), nil
}
