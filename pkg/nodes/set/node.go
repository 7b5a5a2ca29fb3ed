// Package set provides the set step, which stores a value in the run's variable scope.
package set

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/protocol"
)

var ErrNoVariables = errors.New("set step requires an execution context")

// SetStep assigns config.value, or the result of config.expression, to the variable config.as.
type SetStep struct {
	as         string
	expression string
	value      any
}

// NewSetStep parses the step config.
func NewSetStep(config map[string]any) (*SetStep, error) {
	as, ok := config["as"].(string)
	if !ok || as == "" {
		return nil, errors.New("missing required field 'as'")
	}

	expr, _ := config["expression"].(string)
	value, hasValue := config["value"]

	if expr == "" && !hasValue {
		return nil, errors.New("one of 'expression' or 'value' is required")
	}

	return &SetStep{as: as, expression: expr, value: value}, nil
}

// Execute evaluates and stores the value.
func (s *SetStep) Execute(_ context.Context, rt protocol.Runtime, evaluator *expression.Evaluator) (protocol.Result, error) {
	if rt.Execution == nil {
		return protocol.NoResult(), ErrNoVariables
	}

	value := s.value

	if s.expression != "" {
		result, err := evaluator.Evaluate(s.expression, Env(rt))
		if err != nil {
			return protocol.NoResult(), fmt.Errorf("set %s: %w", s.as, err)
		}

		value = result
	}

	rt.Execution.SetVar(s.as, value)

	return protocol.Outputs(map[string]any{s.as: value}), nil
}

// Env is the expression environment shared by control steps.
func Env(rt protocol.Runtime) map[string]any {
	vars := map[string]any{}
	if rt.Execution != nil {
		vars = rt.Execution.Variables()
	}

	outputs := rt.Outputs
	if outputs == nil {
		outputs = map[string]any{}
	}

	return map[string]any{
		"variables":  vars,
		"outputs":    outputs,
		"runId":      rt.RunID,
		"workflowId": rt.WorkflowID,
		"stepId":     rt.Step.ID,
		"index":      rt.Index,
	}
}
