// Package switchnode provides the switch step, which routes a run to the step matching a rendered value.
package switchnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/template"
)

// SwitchStep renders config.value and requests the step of the first case with the same value.
type SwitchStep struct {
	value    string
	cases    []SwitchCase
	fallback string
}

// SwitchCase maps a rendered value to the next step.
type SwitchCase struct {
	Value string `json:"value"`
	Next  string `json:"next"`
}

// NewSwitchStep parses the step config.
func NewSwitchStep(config map[string]any) (*SwitchStep, error) {
	value, ok := config["value"].(string)
	if !ok || value == "" {
		return nil, errors.New("missing required field 'value'")
	}

	raw, ok := config["cases"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errors.New("missing required field 'cases'")
	}

	cases := make([]SwitchCase, 0, len(raw))

	for i, item := range raw {
		in, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("case %d must be an object", i)
		}

		next, ok := in["next"].(string)
		if !ok || next == "" {
			return nil, fmt.Errorf("case %d missing 'next'", i)
		}

		caseValue, ok := in["value"]
		if !ok {
			return nil, fmt.Errorf("case %d missing 'value'", i)
		}

		cases = append(cases, SwitchCase{Value: fmt.Sprint(caseValue), Next: next})
	}

	fallback, _ := config["default"].(string)

	return &SwitchStep{value: value, cases: cases, fallback: fallback}, nil
}

// Execute renders the value and requests the matching step. Without a match or a default the run falls
// through to the outgoing edges.
func (s *SwitchStep) Execute(_ context.Context, rt protocol.Runtime) (protocol.Result, error) {
	vars := map[string]any{}
	if rt.Execution != nil {
		vars = rt.Execution.Variables()
	}

	rendered, err := template.RenderString(s.value, template.Context{
		RunID:      rt.RunID,
		WorkflowID: rt.WorkflowID,
		StepID:     rt.Step.ID,
		Variables:  vars,
	})
	if err != nil {
		return protocol.NoResult(), fmt.Errorf("switch %s: %w", rt.Step.ID, err)
	}

	next := s.fallback
	matched := false

	for _, c := range s.cases {
		if c.Value == rendered {
			next = c.Next
			matched = true

			break
		}
	}

	outputs := map[string]any{"value": rendered, "matched": matched, "next": next}
	if next == "" {
		return protocol.Outputs(outputs), nil
	}

	return protocol.NextWithOutputs(next, outputs), nil
}
