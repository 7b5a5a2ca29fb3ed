package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearDefinition() WorkflowDefinition {
	return WorkflowDefinition{
		ID:   "wf-1",
		Name: "Linear",
		Nodes: []Node{
			{ID: "a", Type: "navigate"},
			{ID: "b", Type: "click"},
			{ID: "c", Type: "extract_text"},
		},
		Edges: []Edge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	}
}

func expression(expr string) *Condition {
	return &Condition{Type: ConditionTypeExpression, Expression: expr}
}

func TestNewWorkflow_ValidDAG(t *testing.T) {
	wf, err := NewWorkflow(linearDefinition())
	require.NoError(t, err)

	assert.Equal(t, "wf-1", wf.ID())
	assert.Equal(t, []string{"a"}, wf.StartNodeIDs())
	assert.Equal(t, []string{"c"}, wf.EndNodeIDs())
	assert.Equal(t, []string{"a", "b", "c"}, wf.NodeIDs())
	assert.Len(t, wf.OutgoingEdges("a"), 1)
	assert.Len(t, wf.IncomingEdges("c"), 1)
	assert.Empty(t, wf.IncomingEdges("a"))

	node, ok := wf.Node("b")
	require.True(t, ok)
	assert.Equal(t, "click", node.Type)

	_, ok = wf.Node("missing")
	assert.False(t, ok)
}

func TestNewWorkflow_DiamondExposesStartAndEnd(t *testing.T) {
	def := WorkflowDefinition{
		ID:   "wf",
		Name: "Diamond",
		Nodes: []Node{
			{ID: "a", Type: "t"}, {ID: "b", Type: "t"}, {ID: "c", Type: "t"}, {ID: "d", Type: "t"},
		},
		Edges: []Edge{
			{From: "a", To: "b"}, {From: "a", To: "c"}, {From: "b", To: "d"}, {From: "c", To: "d"},
		},
	}

	wf, err := NewWorkflow(def)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, wf.StartNodeIDs())
	assert.Equal(t, []string{"d"}, wf.EndNodeIDs())
	assert.Len(t, wf.StartNodes(), 1)
	assert.Len(t, wf.EndNodes(), 1)
}

func TestNewWorkflow_TerminalEdgeMarksEndNode(t *testing.T) {
	def := linearDefinition()
	def.Edges = append(def.Edges, Edge{From: "c"})

	wf, err := NewWorkflow(def)
	require.NoError(t, err)

	assert.Equal(t, []string{"c"}, wf.EndNodeIDs())
	assert.Len(t, wf.OutgoingEdges("c"), 1)
	assert.True(t, wf.OutgoingEdges("c")[0].IsTerminal())
}

func TestNewWorkflow_RejectsCycle(t *testing.T) {
	testCases := []struct {
		name  string
		edges []Edge
	}{
		{name: "two node cycle", edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}}},
		{name: "self loop", edges: []Edge{{From: "a", To: "b"}, {From: "c", To: "c"}}},
		{name: "three node cycle", edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := linearDefinition()
			def.Edges = tc.edges

			wf, err := NewWorkflow(def)

			require.Error(t, err)
			assert.Nil(t, wf)
			assert.True(t, IsInvariantViolation(err))
		})
	}
}

func TestNewWorkflow_DuplicateEdgeDetection(t *testing.T) {
	base := func(second Edge) WorkflowDefinition {
		def := linearDefinition()
		def.Edges = []Edge{{From: "a", To: "b", Condition: expression("state.outputs.ok")}, second, {From: "b", To: "c"}}

		return def
	}

	_, err := NewWorkflow(base(Edge{From: "a", To: "b", Condition: expression("state.outputs.ok")}))
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	testCases := []struct {
		name string
		edge Edge
	}{
		{name: "different source", edge: Edge{From: "c", To: "b", Condition: expression("state.outputs.ok")}},
		{name: "different target", edge: Edge{From: "a", To: "c", Condition: expression("state.outputs.ok")}},
		{name: "different condition", edge: Edge{From: "a", To: "b", Condition: expression("!state.outputs.ok")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := base(tc.edge)
			if tc.edge.From == "c" {
				// c -> b would close a cycle with b -> c
				def.Edges = def.Edges[:2]
			}

			_, err := NewWorkflow(def)
			assert.NoError(t, err)
		})
	}
}

func TestNewWorkflow_PriorityUniquePerSource(t *testing.T) {
	def := linearDefinition()
	def.Edges = []Edge{
		{From: "a", To: "b", Priority: Priority(1)},
		{From: "a", To: "c", Priority: Priority(1)},
	}

	_, err := NewWorkflow(def)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))

	def.Edges = []Edge{
		{From: "a", To: "b", Priority: Priority(1)},
		{From: "b", To: "c", Priority: Priority(1)},
	}

	_, err = NewWorkflow(def)
	assert.NoError(t, err)
}

func TestNewWorkflow_StructuralErrors(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(def *WorkflowDefinition)
		isKindOf func(error) bool
	}{
		{
			name:     "blank id",
			mutate:   func(def *WorkflowDefinition) { def.ID = " " },
			isKindOf: IsValidation,
		},
		{
			name:     "no nodes",
			mutate:   func(def *WorkflowDefinition) { def.Nodes = nil; def.Edges = nil },
			isKindOf: IsValidation,
		},
		{
			name:     "duplicate node id",
			mutate:   func(def *WorkflowDefinition) { def.Nodes = append(def.Nodes, Node{ID: "a", Type: "t"}) },
			isKindOf: IsDuplicate,
		},
		{
			name:     "node without type",
			mutate:   func(def *WorkflowDefinition) { def.Nodes[1].Type = "" },
			isKindOf: IsValidation,
		},
		{
			name:     "unknown edge source",
			mutate:   func(def *WorkflowDefinition) { def.Edges = append(def.Edges, Edge{From: "x", To: "a"}) },
			isKindOf: IsInvariantViolation,
		},
		{
			name:     "unknown edge target",
			mutate:   func(def *WorkflowDefinition) { def.Edges = append(def.Edges, Edge{From: "a", To: "x"}) },
			isKindOf: IsInvariantViolation,
		},
		{
			name: "unsupported condition type",
			mutate: func(def *WorkflowDefinition) {
				def.Edges[0].Condition = &Condition{Type: "lua"}
			},
			isKindOf: IsValidation,
		},
		{
			name:     "negative priority",
			mutate:   func(def *WorkflowDefinition) { def.Edges[0].Priority = Priority(-1) },
			isKindOf: IsValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := linearDefinition()
			tc.mutate(&def)

			wf, err := NewWorkflow(def)

			require.Error(t, err)
			assert.Nil(t, wf)
			assert.True(t, tc.isKindOf(err), "unexpected error kind: %v", err)
		})
	}
}

func TestNewWorkflow_DataBindingCoverage(t *testing.T) {
	def := linearDefinition()
	def.Nodes[1].Inputs = []Port{{Name: "selector", Required: true}}
	def.Nodes[0].Outputs = []Port{{Name: "url"}}

	_, err := NewWorkflow(def)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))

	def.DataBindings = []DataBinding{{SourceNodeID: "a", SourceOutput: "url", TargetNodeID: "b", TargetInput: "selector"}}

	wf, err := NewWorkflow(def)
	require.NoError(t, err)
	assert.Len(t, wf.BindingsFor("b"), 1)
	assert.Empty(t, wf.BindingsFor("a"))
}

func TestNewWorkflow_DataBindingErrors(t *testing.T) {
	testCases := []struct {
		name     string
		bindings []DataBinding
		isKindOf func(error) bool
	}{
		{
			name:     "unknown source",
			bindings: []DataBinding{{SourceNodeID: "x", TargetNodeID: "b", TargetInput: "in"}},
			isKindOf: IsInvariantViolation,
		},
		{
			name:     "unknown target",
			bindings: []DataBinding{{SourceNodeID: "a", TargetNodeID: "x", TargetInput: "in"}},
			isKindOf: IsInvariantViolation,
		},
		{
			name:     "self binding",
			bindings: []DataBinding{{SourceNodeID: "b", TargetNodeID: "b", TargetInput: "in"}},
			isKindOf: IsInvariantViolation,
		},
		{
			name: "slot bound twice",
			bindings: []DataBinding{
				{SourceNodeID: "a", TargetNodeID: "c", TargetInput: "in"},
				{SourceNodeID: "b", TargetNodeID: "c", TargetInput: "in"},
			},
			isKindOf: IsDuplicate,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := linearDefinition()
			def.DataBindings = tc.bindings

			_, err := NewWorkflow(def)

			require.Error(t, err)
			assert.True(t, tc.isKindOf(err), "unexpected error kind: %v", err)
		})
	}
}

func TestNewWorkflow_DataBindingUndeclaredInput(t *testing.T) {
	def := linearDefinition()
	def.Nodes[1].Inputs = []Port{{Name: "selector"}}
	def.DataBindings = []DataBinding{{SourceNodeID: "a", TargetNodeID: "b", TargetInput: "value"}}

	_, err := NewWorkflow(def)

	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
}

func TestNewWorkflow_Streams(t *testing.T) {
	def := linearDefinition()
	def.Streams = []Stream{{From: "a", To: "c"}, {From: "b", To: "c"}}

	wf, err := NewWorkflow(def)
	require.NoError(t, err)
	assert.Len(t, wf.Streams(), 2)

	def.Streams = []Stream{{From: "a", To: "c"}, {From: "a", To: "c"}}
	_, err = NewWorkflow(def)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	def.Streams = []Stream{{From: "c", To: "c"}}
	_, err = NewWorkflow(def)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))

	def.Streams = []Stream{{From: "a", To: "missing"}}
	_, err = NewWorkflow(def)
	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
}

func TestWorkflow_AccessorsReturnCopies(t *testing.T) {
	def := linearDefinition()
	def.Nodes[0].Config = map[string]any{"url": "https://example.com"}
	def.Edges[0].Priority = Priority(3)

	wf, err := NewWorkflow(def)
	require.NoError(t, err)

	def.Nodes[0].Config["url"] = "mutated input"

	nodes := wf.Nodes()
	nodes[0].Config["url"] = "mutated output"

	edges := wf.OutgoingEdges("a")
	*edges[0].Priority = 99

	starts := wf.StartNodeIDs()
	starts[0] = "z"

	node, _ := wf.Node("a")
	assert.Equal(t, "https://example.com", node.Config["url"])
	assert.Equal(t, 3, *wf.OutgoingEdges("a")[0].Priority)
	assert.Equal(t, []string{"a"}, wf.StartNodeIDs())
}

func TestWorkflow_DefinitionRoundTrip(t *testing.T) {
	def := linearDefinition()
	def.Edges[0].Condition = expression("state.outputs.ok === true")
	def.Streams = []Stream{{From: "a", To: "c"}}

	wf, err := NewWorkflow(def)
	require.NoError(t, err)

	rebuilt, err := NewWorkflow(wf.Definition())
	require.NoError(t, err)

	assert.Equal(t, wf.Definition(), rebuilt.Definition())
	assert.Equal(t, wf.StartNodeIDs(), rebuilt.StartNodeIDs())
}

func TestNewWorkflowView(t *testing.T) {
	wf, err := NewWorkflow(linearDefinition())
	require.NoError(t, err)

	view := NewWorkflowView(wf)

	require.NotNil(t, view)
	assert.Equal(t, "Linear", view.Name)
	assert.Len(t, view.Nodes, 3)
	assert.Equal(t, []string{"a"}, view.StartNodeIDs)
	assert.Nil(t, NewWorkflowView(nil))
}
