package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/protocol"
)

var _ protocol.Variables = (*ExecutionContext)(nil)

func TestExecutionContext_NextStepIndex(t *testing.T) {
	execCtx := NewExecutionContext()

	assert.Equal(t, 0, execCtx.NextStepIndex())
	assert.Equal(t, 1, execCtx.NextStepIndex())
	assert.Equal(t, 2, execCtx.NextStepIndex())
}

func TestExecutionContext_Scopes(t *testing.T) {
	execCtx := NewExecutionContext()
	execCtx.SetVar("user", "alice")
	execCtx.SetVar("attempt", 1)

	execCtx.PushScope()
	execCtx.SetVar("attempt", 2)
	execCtx.SetVar("inner", true)

	assert.Equal(t, 2, execCtx.Depth())

	v, ok := execCtx.Var("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = execCtx.Var("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	assert.Equal(t, map[string]any{"user": "alice", "attempt": 2, "inner": true}, execCtx.Variables())

	require.NoError(t, execCtx.PopScope())

	v, ok = execCtx.Var("attempt")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = execCtx.Var("inner")
	assert.False(t, ok)
}

func TestExecutionContext_PopRootScope(t *testing.T) {
	execCtx := NewExecutionContext()

	err := execCtx.PopScope()
	require.Error(t, err)
	assert.True(t, models.IsInvariantViolation(err))
	assert.Equal(t, 1, execCtx.Depth())
}

func TestExecutionContext_VariablesIsSnapshot(t *testing.T) {
	execCtx := NewExecutionContext()
	execCtx.SetVar("a", 1)

	snapshot := execCtx.Variables()
	snapshot["a"] = 99

	v, _ := execCtx.Var("a")
	assert.Equal(t, 1, v)
}
