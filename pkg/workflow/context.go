package workflow

import "github.com/dukex/stepflow/pkg/models"

// ExecutionContext holds the scoped variables and the step counter of one run. It is owned by a single run.
type ExecutionContext struct {
	scopes      []map[string]any
	stepCounter int
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		scopes: []map[string]any{{}},
	}
}

// NextStepIndex returns a per-run index, starting at 0, that grows by one on every call.
func (c *ExecutionContext) NextStepIndex() int {
	current := c.stepCounter
	c.stepCounter++

	return current
}

// PushScope opens a nested variable scope.
func (c *ExecutionContext) PushScope() {
	c.scopes = append(c.scopes, map[string]any{})
}

// PopScope closes the innermost scope. The root scope cannot be closed.
func (c *ExecutionContext) PopScope() error {
	if len(c.scopes) <= 1 {
		return models.NewInvariantViolation("cannot pop root scope")
	}

	c.scopes = c.scopes[:len(c.scopes)-1]

	return nil
}

// Depth returns the number of open scopes, including the root.
func (c *ExecutionContext) Depth() int { return len(c.scopes) }

// SetVar sets a variable in the innermost scope.
func (c *ExecutionContext) SetVar(name string, value any) {
	c.scopes[len(c.scopes)-1][name] = value
}

// Var looks a variable up from the innermost scope outwards.
func (c *ExecutionContext) Var(name string) (any, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, true
		}
	}

	return nil, false
}

// Variables returns a flattened snapshot in which inner scopes override outer ones.
func (c *ExecutionContext) Variables() map[string]any {
	out := make(map[string]any)

	for _, scope := range c.scopes {
		for k, v := range scope {
			out[k] = v
		}
	}

	return out
}
