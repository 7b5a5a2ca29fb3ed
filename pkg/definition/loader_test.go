package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/models"
)

func linearPayload() map[string]any {
	return map[string]any{
		"workflowId":  "wf-1",
		"name":        "  Checkout  ",
		"description": "buys things",
		"nodes": []any{
			map[string]any{"id": "a", "type": "log", "config": map[string]any{"message": "hi"}},
			map[string]any{"id": "b", "type": "wait"},
			map[string]any{"id": "c", "type": "log"},
		},
		"edges": []any{
			map[string]any{"from": "a", "to": "b"},
			map[string]any{"source": "b", "target": "c"},
		},
	}
}

func TestLoad_LinearWorkflow(t *testing.T) {
	loaded, err := Load(linearPayload())
	require.NoError(t, err)

	assert.Equal(t, "wf-1", loaded.Workflow.ID())
	assert.Equal(t, "Checkout", loaded.Workflow.Name())
	assert.Equal(t, "a", loaded.StartNodeID)
	assert.Equal(t, Metadata{ID: "wf-1", Name: "Checkout", Description: "buys things"}, loaded.Metadata)
	assert.Len(t, loaded.Workflow.Edges(), 2)

	node, ok := loaded.Workflow.Node("a")
	require.True(t, ok)
	assert.Equal(t, "a", node.Name)
	assert.Equal(t, "hi", node.Config["message"])
}

func TestLoad_DefinitionWrapperAndDefaults(t *testing.T) {
	payload := map[string]any{
		"id": "wf-2",
		"definition": map[string]any{
			"nodes": []any{
				map[string]any{"nodeKey": "first"},
				map[string]any{"id": "second", "type": "log"},
			},
			"edges": []any{
				map[string]any{"fromNodeId": "first", "toNodeId": "second"},
			},
		},
	}

	loaded, err := Load(payload)
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkflowName, loaded.Workflow.Name())

	node, ok := loaded.Workflow.Node("first")
	require.True(t, ok)
	assert.Equal(t, DefaultNodeType, node.Type)
	assert.Equal(t, "first", loaded.StartNodeID)
}

func TestLoad_GeneratesMissingNodeIDs(t *testing.T) {
	loaded, err := Load(map[string]any{
		"id":    "wf-3",
		"nodes": []any{map[string]any{"type": "log"}},
	})
	require.NoError(t, err)

	ids := loaded.Workflow.NodeIDs()
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], loaded.StartNodeID)
}

func TestLoad_StartNodeSelection(t *testing.T) {
	tests := []struct {
		name     string
		start    map[string]any
		expected string
	}{
		{name: "preferred start node id", start: map[string]any{"startNodeId": "b"}, expected: "b"},
		{name: "start alias", start: map[string]any{"start": "c"}, expected: "c"},
		{name: "unknown preferred falls back", start: map[string]any{"startNodeId": "zzz"}, expected: "a"},
		{name: "no preference", start: map[string]any{}, expected: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := linearPayload()
			for k, v := range tt.start {
				payload[k] = v
			}

			loaded, err := Load(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, loaded.StartNodeID)
		})
	}
}

func TestLoad_Conditions(t *testing.T) {
	payload := linearPayload()
	payload["edges"] = []any{
		map[string]any{
			"from":      "a",
			"to":        "b",
			"priority":  float64(1),
			"condition": map[string]any{"expression": "state.outputs.ok === true"},
		},
		map[string]any{"from": "a", "to": "c", "condition": "state.outputs.ok === false"},
		map[string]any{"from": "b", "to": "c"},
	}

	loaded, err := Load(payload)
	require.NoError(t, err)

	edges := loaded.Workflow.OutgoingEdges("a")
	require.Len(t, edges, 2)
	require.NotNil(t, edges[0].Condition)
	assert.Equal(t, models.ConditionTypeExpression, edges[0].Condition.Type)
	require.NotNil(t, edges[0].Priority)
	assert.Equal(t, 1, *edges[0].Priority)
	assert.Equal(t, "state.outputs.ok === false", edges[1].Condition.Expression)
	assert.Nil(t, edges[1].Priority)
}

func TestLoad_PortsAndBindings(t *testing.T) {
	payload := map[string]any{
		"id": "wf-ports",
		"nodes": []any{
			map[string]any{"id": "extract", "type": "extract_text", "outputs": []any{"text"}},
			map[string]any{
				"id":     "log",
				"type":   "log",
				"inputs": []any{"message", map[string]any{"name": "extra", "required": false}},
			},
		},
		"edges": []any{map[string]any{"from": "extract", "to": "log"}},
		"dataBindings": []any{
			map[string]any{"from": "extract", "output": "text", "to": "log", "targetInput": "message"},
		},
	}

	loaded, err := Load(payload)
	require.NoError(t, err)

	node, ok := loaded.Workflow.Node("log")
	require.True(t, ok)
	assert.Equal(t, []models.Port{{Name: "message", Required: true}, {Name: "extra", Required: false}}, node.Inputs)

	extract, _ := loaded.Workflow.Node("extract")
	assert.Equal(t, []models.Port{{Name: "text", Required: false}}, extract.Outputs)

	bindings := loaded.Workflow.DataBindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "extract", bindings[0].SourceNodeID)
	assert.Equal(t, "message", bindings[0].TargetInput)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		message string
		isKind  func(error) bool
	}{
		{
			name:    "missing id",
			mutate:  func(p map[string]any) { delete(p, "workflowId") },
			message: "workflow id is required",
			isKind:  models.IsValidation,
		},
		{
			name:    "no nodes",
			mutate:  func(p map[string]any) { p["nodes"] = []any{} },
			message: "workflow must include nodes",
			isKind:  models.IsValidation,
		},
		{
			name:    "nodes not an array",
			mutate:  func(p map[string]any) { p["nodes"] = "a,b" },
			message: "schema validation",
			isKind:  models.IsValidation,
		},
		{
			name: "edge without source",
			mutate: func(p map[string]any) {
				p["edges"] = []any{map[string]any{"to": "b"}}
			},
			message: "Edge[1] is missing source reference",
			isKind:  models.IsValidation,
		},
		{
			name: "edge to unknown node",
			mutate: func(p map[string]any) {
				p["edges"] = []any{map[string]any{"from": "a", "to": "b"}, map[string]any{"from": "b", "to": "nope"}}
			},
			message: `Edge[2] references unknown node "nope"`,
			isKind:  models.IsValidation,
		},
		{
			name: "binding without target input",
			mutate: func(p map[string]any) {
				p["dataBindings"] = []any{map[string]any{"from": "a", "to": "b"}}
			},
			message: "DataBinding[1] is missing targetInput",
			isKind:  models.IsValidation,
		},
		{
			name: "stream onto itself",
			mutate: func(p map[string]any) {
				p["streams"] = []any{map[string]any{"from": "a", "to": "a"}}
			},
			message: "Stream[1] source and target cannot match",
			isKind:  models.IsValidation,
		},
		{
			name: "cycle",
			mutate: func(p map[string]any) {
				p["edges"] = []any{
					map[string]any{"from": "a", "to": "b"},
					map[string]any{"from": "b", "to": "c"},
					map[string]any{"from": "c", "to": "a"},
				}
			},
			message: "cycle",
			isKind:  models.IsInvariantViolation,
		},
		{
			name: "fractional priority",
			mutate: func(p map[string]any) {
				p["edges"] = []any{map[string]any{"from": "a", "to": "b", "priority": 1.5}}
			},
			message: "Edge[1] priority must be an integer, got 1.5",
			isKind:  models.IsValidation,
		},
		{
			name: "priority as text",
			mutate: func(p map[string]any) {
				p["edges"] = []any{map[string]any{"from": "a", "to": "b", "priority": "high"}}
			},
			message: "Edge[1] priority must be an integer",
			isKind:  models.IsValidation,
		},
		{
			name: "unknown condition type",
			mutate: func(p map[string]any) {
				p["edges"] = []any{map[string]any{"from": "a", "to": "b", "condition": map[string]any{"type": "magic"}}}
			},
			message: "magic",
			isKind:  models.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := linearPayload()
			tt.mutate(payload)

			_, err := Load(payload)
			require.Error(t, err)
			assert.True(t, tt.isKind(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad_NilPayload(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

type staticSchemas map[string]map[string]any

func (s staticSchemas) Schema(stepType string) (map[string]any, bool) {
	schema, ok := s[stepType]

	return schema, ok
}

func TestLoader_ValidatesStepConfig(t *testing.T) {
	loader := NewLoader(staticSchemas{
		"log": {
			"type":       "object",
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
			"required":   []string{"message"},
		},
	})

	_, err := loader.Load(linearPayload())
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Contains(t, err.Error(), `Node[3] "c" config`)

	payload := linearPayload()
	payload["nodes"].([]any)[2].(map[string]any)["config"] = map[string]any{"message": "bye"}

	loaded, err := loader.Load(payload)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.Workflow.ID())
}

func TestParse_YAMLAndJSON(t *testing.T) {
	yamlDoc := []byte(`
workflowId: wf-yaml
name: From YAML
nodes:
  - id: a
    type: log
    config:
      message: hello
  - id: b
    type: wait
    config:
      durationMs: 10
edges:
  - from: a
    to: b
    priority: 0
`)

	payload, err := Parse(yamlDoc, "yaml")
	require.NoError(t, err)

	loaded, err := Load(payload)
	require.NoError(t, err)
	assert.Equal(t, "From YAML", loaded.Workflow.Name())
	require.NotNil(t, loaded.Workflow.Edges()[0].Priority)
	assert.Equal(t, 0, *loaded.Workflow.Edges()[0].Priority)

	jsonPayload, err := Parse([]byte(`{"id":"wf-json","nodes":[{"id":"a","type":"log"}]}`), "json")
	require.NoError(t, err)
	assert.Equal(t, "wf-json", jsonPayload["id"])

	_, err = Parse([]byte("{"), "json")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	_, err = Parse([]byte("a: b"), "toml")
	require.Error(t, err)
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yml")
	require.NoError(t, os.WriteFile(path, []byte("id: wf-file\nnodes:\n  - id: only\n    type: log\n"), 0o600))

	loaded, err := NewLoader(nil).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wf-file", loaded.Workflow.ID())
	assert.Equal(t, "only", loaded.StartNodeID)

	_, err = NewLoader(nil).LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
