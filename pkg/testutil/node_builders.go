// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/models"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) models.Node {
	node := models.Node{
		ID:     uuid.New().String(),
		Type:   "log",
		Name:   "Test Node",
		Config: map[string]any{"message": "test", "level": "info"},
	}

	for _, override := range overrides {
		override(&node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// Edge builds an unconditional edge.
func Edge(from, to string) models.Edge {
	return models.Edge{From: from, To: to}
}

// ExpressionEdge builds an edge guarded by an expression condition.
func ExpressionEdge(from, to, expression string) models.Edge {
	return models.Edge{
		From:      from,
		To:        to,
		Condition: &models.Condition{Type: models.ConditionTypeExpression, Expression: expression},
	}
}

// NewWorkflow builds a workflow and fails the test when it is invalid.
func NewWorkflow(t *testing.T, id string, nodes []models.Node, edges ...models.Edge) *models.Workflow {
	t.Helper()

	wf, err := models.NewWorkflow(models.WorkflowDefinition{
		ID:    id,
		Name:  "Test Workflow " + id,
		Nodes: nodes,
		Edges: edges,
	})
	require.NoError(t, err)

	return wf
}

// LinearWorkflow builds a chain of log nodes connected in order.
func LinearWorkflow(t *testing.T, id string, nodeIDs ...string) *models.Workflow {
	t.Helper()

	nodes := make([]models.Node, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		nodes = append(nodes, CreateTestNode(WithID(nodeID)))
	}

	edges := make([]models.Edge, 0, len(nodeIDs))
	for i := 1; i < len(nodeIDs); i++ {
		edges = append(edges, Edge(nodeIDs[i-1], nodeIDs[i]))
	}

	return NewWorkflow(t, id, nodes, edges...)
}
