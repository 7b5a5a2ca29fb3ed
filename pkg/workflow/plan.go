package workflow

import (
	"cmp"
	"math"
	"slices"

	"github.com/dukex/stepflow/pkg/models"
)

// Plan is the ordered, addressable projection of a workflow used for traversal. Steps keep declaration order.
type Plan struct {
	workflow *models.Workflow
	steps    []models.Step
	index    map[string]int
	startID  string
}

// NewPlan builds the plan for wf. preferredStartID is used when it names a known step.
func NewPlan(wf *models.Workflow, preferredStartID string) (*Plan, error) {
	if wf == nil {
		return nil, models.NewInvariantViolation("workflow is required to build execution plan")
	}

	nodes := wf.Nodes()
	if len(nodes) == 0 {
		return nil, models.NewInvariantViolation("workflow %s must have at least one node to build plan", wf.ID())
	}

	p := &Plan{
		workflow: wf,
		steps:    make([]models.Step, 0, len(nodes)),
		index:    make(map[string]int, len(nodes)),
	}

	for i, node := range nodes {
		p.steps = append(p.steps, node.Step())
		p.index[node.ID] = i
	}

	p.startID = p.ResolveStart(preferredStartID)

	return p, nil
}

// Workflow returns the workflow the plan was built from.
func (p *Plan) Workflow() *models.Workflow { return p.workflow }

// StartID returns the id of the first step of a run.
func (p *Plan) StartID() string { return p.startID }

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.steps) }

// HasStep reports whether id names a step of the plan.
func (p *Plan) HasStep(id string) bool {
	_, ok := p.index[id]

	return ok
}

// Step returns the execution projection of a node.
func (p *Plan) Step(id string) (models.Step, error) {
	i, ok := p.index[id]
	if !ok {
		return models.Step{}, models.NewInvariantViolation("node %s not found in workflow %s", id, p.workflow.ID())
	}

	return p.steps[i], nil
}

// StepIndex returns the declaration index of a step.
func (p *Plan) StepIndex(id string) (int, bool) {
	i, ok := p.index[id]

	return i, ok
}

// NextSequential returns the step declared right after id.
func (p *Plan) NextSequential(id string) (models.Step, bool) {
	i, ok := p.index[id]
	if !ok || i+1 >= len(p.steps) {
		return models.Step{}, false
	}

	return p.steps[i+1], true
}

// EdgesFrom returns the outgoing edges of id ordered by ascending priority. Edges without a priority come last
// and keep their declaration order.
func (p *Plan) EdgesFrom(id string) []models.Edge {
	edges := p.workflow.OutgoingEdges(id)

	slices.SortStableFunc(edges, func(a, b models.Edge) int {
		return cmp.Compare(priorityOf(a), priorityOf(b))
	})

	return edges
}

// ResolveStart returns preferred when it names a known step, else the first computed start node, else the
// first declared node.
func (p *Plan) ResolveStart(preferred string) string {
	if preferred != "" && p.HasStep(preferred) {
		return preferred
	}

	if starts := p.workflow.StartNodeIDs(); len(starts) > 0 {
		return starts[0]
	}

	return p.steps[0].ID
}

func priorityOf(e models.Edge) int {
	if e.Priority == nil {
		return math.MaxInt
	}

	return *e.Priority
}
