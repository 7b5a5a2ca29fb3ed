package branch

import (
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vars map[string]any

func (v vars) SetVar(name string, value any) { v[name] = value }

func (v vars) Var(name string) (any, bool) {
	value, ok := v[name]

	return value, ok
}

func (v vars) Variables() map[string]any { return v }

func run(t *testing.T, config map[string]any, store vars) (protocol.Result, error) {
	t.Helper()

	rt := protocol.Runtime{
		Step:      models.Step{ID: "branch-1", Type: "branch", Config: config},
		Execution: store,
	}

	return NewBranchStepFactory().Handler()(t.Context(), rt)
}

func TestBranchStep_BooleanSelectsThenElse(t *testing.T) {
	config := map[string]any{"expression": "variables.loggedIn", "then": "dashboard", "else": "login"}

	result, err := run(t, config, vars{"loggedIn": true})
	require.NoError(t, err)

	next, ok := result.NextID()
	require.True(t, ok)
	assert.Equal(t, "dashboard", next)

	result, err = run(t, config, vars{"loggedIn": false})
	require.NoError(t, err)

	next, _ = result.NextID()
	assert.Equal(t, "login", next)
}

func TestBranchStep_StringNamesStep(t *testing.T) {
	result, err := run(t, map[string]any{"expression": "variables.count > 3 ? 'done' : 'retry'"}, vars{"count": 5})
	require.NoError(t, err)

	next, ok := result.NextID()
	require.True(t, ok)
	assert.Equal(t, "done", next)
}

func TestBranchStep_NoTargetFallsThrough(t *testing.T) {
	result, err := run(t, map[string]any{"expression": "false", "then": "x"}, vars{})
	require.NoError(t, err)

	_, ok := result.NextID()
	assert.False(t, ok)

	data, ok := result.Data()
	require.True(t, ok)
	assert.Equal(t, false, data.(map[string]any)["result"])
}

func TestNewBranchStep_RequiresExpression(t *testing.T) {
	_, err := NewBranchStep(map[string]any{"then": "x"})

	assert.Error(t, err)
}
