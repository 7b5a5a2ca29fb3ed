package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
)

const greetingWorkflow = `{
  "id": "wf-cli",
  "name": "Greeting",
  "nodes": [
    {"id": "greet", "type": "set", "config": {"as": "greeting", "value": "hello"}},
    {"id": "shout", "type": "set", "config": {"as": "loud", "expression": "upper(variables.greeting)"}}
  ],
  "edges": [{"from": "greet", "to": "shout"}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func testEngine(t *testing.T) *engine {
	t.Helper()

	eng, err := newEngine(t.Context(), log.Nop(), engineOptions{
		DatabaseURL:    filepath.Join(t.TempDir(), "data"),
		EventBus:       "gochannel",
		MaxConcurrency: 1,
		SessionTimeout: defaultSessionTimeout,
	})
	require.NoError(t, err)

	return eng
}

func TestEngine_ExecutesAndPersistsRun(t *testing.T) {
	eng := testEngine(t)
	require.NoError(t, logRunEvents(t.Context(), eng.bus, log.Nop()))

	payload, err := definition.ParseFile(writeFile(t, "greeting.json", greetingWorkflow))
	require.NoError(t, err)

	execution, err := eng.runs.Execute(t.Context(), "run-cli", payload)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, execution.Status())

	shout, ok := execution.NodeExecution("shout")
	require.True(t, ok)
	assert.Equal(t, models.StatusSucceeded, shout.Status())
	assert.Contains(t, fmt.Sprint(shout.Outputs()), "HELLO")

	stored, err := eng.repository.Execution(t.Context(), "run-cli")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, stored.Status())

	wf, err := eng.repository.FetchByID(t.Context(), "wf-cli")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", wf.Name())

	var out bytes.Buffer
	require.NoError(t, printExecution(&out, execution))
	assert.Contains(t, out.String(), `"status": "Succeeded"`)

	require.NoError(t, eng.close(t.Context()))
}

func TestNewEngine_RejectsUnknownEventBus(t *testing.T) {
	_, err := newEngine(t.Context(), log.Nop(), engineOptions{
		DatabaseURL: filepath.Join(t.TempDir(), "data"),
		EventBus:    "carrier-pigeon",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported event bus provider")
}

func TestValidateFiles(t *testing.T) {
	reg := registry.NewRegistry(log.Nop())
	reg.RegisterDefaultSteps()

	loader := definition.NewLoader(reg)

	valid := writeFile(t, "valid.json", greetingWorkflow)
	invalid := writeFile(t, "invalid.yaml", "id: broken\nname: Broken\nnodes: []\n")

	var out bytes.Buffer
	require.NoError(t, validateFiles(&out, loader, []string{valid}))
	assert.Contains(t, out.String(), "VALID   "+valid+": Greeting (wf-cli), 2 steps, start greet, entry steps [greet]")

	out.Reset()
	err := validateFiles(&out, loader, []string{valid, invalid})
	require.EqualError(t, err, "1 of 2 definitions are invalid")
	assert.Contains(t, out.String(), "INVALID "+invalid)
}
