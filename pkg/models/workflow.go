package models

import "time"

// WorkflowDefinition is the plain input used to build a Workflow. It is also the persisted snapshot.
type WorkflowDefinition struct {
	ID           string         `json:"id"                     yaml:"id"`
	Name         string         `json:"name"                   yaml:"name"`
	Description  string         `json:"description,omitempty"  yaml:"description,omitempty"`
	Nodes        []Node         `json:"nodes"                  yaml:"nodes"`
	Edges        []Edge         `json:"edges,omitempty"        yaml:"edges,omitempty"`
	DataBindings []DataBinding  `json:"dataBindings,omitempty" yaml:"dataBindings,omitempty"`
	Streams      []Stream       `json:"streams,omitempty"      yaml:"streams,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"     yaml:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"              yaml:"-"`
	UpdatedAt    time.Time      `json:"updatedAt"              yaml:"-"`
}

// Workflow is a validated, immutable workflow graph. Accessors return copies.
type Workflow struct {
	def WorkflowDefinition

	nodesByID      map[string]Node
	nodeOrder      []string
	edgesBySource  map[string][]Edge
	edgesByTarget  map[string][]Edge
	bindingsByNode map[string][]DataBinding
	startNodeIDs   []string
	endNodeIDs     []string
}

// NewWorkflow validates the definition and builds the graph. It never returns a partially valid workflow.
func NewWorkflow(def WorkflowDefinition) (*Workflow, error) {
	id, err := requireNonBlank(def.ID, "workflow id")
	if err != nil {
		return nil, err
	}

	name, err := requireNonBlank(def.Name, "workflow name")
	if err != nil {
		return nil, err
	}

	wf := &Workflow{
		def: WorkflowDefinition{
			ID:          id,
			Name:        name,
			Description: def.Description,
			Metadata:    cloneMap(def.Metadata),
			CreatedAt:   def.CreatedAt,
			UpdatedAt:   def.UpdatedAt,
		},
		nodesByID:      make(map[string]Node, len(def.Nodes)),
		edgesBySource:  make(map[string][]Edge, len(def.Nodes)),
		edgesByTarget:  make(map[string][]Edge, len(def.Nodes)),
		bindingsByNode: make(map[string][]DataBinding),
	}

	if err := wf.addNodes(def.Nodes); err != nil {
		return nil, err
	}

	if err := wf.addEdges(def.Edges); err != nil {
		return nil, err
	}

	if err := wf.validateGraph(); err != nil {
		return nil, err
	}

	if err := wf.addDataBindings(def.DataBindings); err != nil {
		return nil, err
	}

	if err := wf.addStreams(def.Streams); err != nil {
		return nil, err
	}

	return wf, nil
}

func (w *Workflow) addNodes(nodes []Node) error {
	if len(nodes) == 0 {
		return NewValidationError("workflow %s must declare at least one node", w.def.ID)
	}

	for i, node := range nodes {
		id, err := requireNonBlank(node.ID, "node id")
		if err != nil {
			return err
		}

		if _, err := requireNonBlank(node.Type, "type of node "+id); err != nil {
			return err
		}

		if _, exists := w.nodesByID[id]; exists {
			return NewDuplicateError("node id %s is declared more than once", id).WithMetadata("index", i)
		}

		if err := validatePorts(id, node.Inputs); err != nil {
			return err
		}

		if err := validatePorts(id, node.Outputs); err != nil {
			return err
		}

		node = node.clone()
		w.nodesByID[id] = node
		w.nodeOrder = append(w.nodeOrder, id)
		w.def.Nodes = append(w.def.Nodes, node)
	}

	return nil
}

func validatePorts(nodeID string, ports []Port) error {
	seen := make(map[string]struct{}, len(ports))

	for _, port := range ports {
		if _, err := requireNonBlank(port.Name, "port name"); err != nil {
			return NewValidationError("node %s: port name is required", nodeID)
		}

		if _, dup := seen[port.Name]; dup {
			return NewDuplicateError("node %s declares port %s more than once", nodeID, port.Name)
		}

		seen[port.Name] = struct{}{}
	}

	return nil
}

func (w *Workflow) addEdges(edges []Edge) error {
	routes := make(map[string]struct{}, len(edges))
	priorities := make(map[string]map[int]struct{})

	for _, edge := range edges {
		if _, err := requireNonBlank(edge.From, "edge source"); err != nil {
			return err
		}

		if _, ok := w.nodesByID[edge.From]; !ok {
			return NewInvariantViolation("edge source %s is not part of workflow %s", edge.From, w.def.ID)
		}

		if !edge.IsTerminal() {
			if _, ok := w.nodesByID[edge.To]; !ok {
				return NewInvariantViolation("edge target %s is not part of workflow %s", edge.To, w.def.ID)
			}
		}

		if edge.Condition != nil && !edge.Condition.Type.IsValid() {
			return NewValidationError("edge %s -> %s has unsupported condition type %q",
				edge.From, edge.To, edge.Condition.Type)
		}

		key := edge.RouteKey()
		if _, dup := routes[key]; dup {
			return NewDuplicateError("duplicate edge detected for %s -> %s with identical condition",
				edge.From, edge.To)
		}

		routes[key] = struct{}{}

		if edge.HasPriority() {
			if *edge.Priority < 0 {
				return NewValidationError("edge %s -> %s priority must be non-negative", edge.From, edge.To)
			}

			bucket := priorities[edge.From]
			if bucket == nil {
				bucket = make(map[int]struct{})
				priorities[edge.From] = bucket
			}

			if _, dup := bucket[*edge.Priority]; dup {
				return NewInvariantViolation("edges originating from %s must have unique priority values", edge.From).
					WithMetadata("priority", *edge.Priority)
			}

			bucket[*edge.Priority] = struct{}{}
		}

		edge = edge.clone()
		w.def.Edges = append(w.def.Edges, edge)
		w.edgesBySource[edge.From] = append(w.edgesBySource[edge.From], edge)

		if !edge.IsTerminal() {
			w.edgesByTarget[edge.To] = append(w.edgesByTarget[edge.To], edge)
		}
	}

	return nil
}

func (w *Workflow) validateGraph() error {
	if hasCycle(w.nodeOrder, w.def.Edges) {
		return NewInvariantViolation("workflow %s must be a DAG (no cycles allowed)", w.def.ID)
	}

	in, out := computeDegrees(w.nodeOrder, w.def.Edges)

	for _, id := range w.nodeOrder {
		if in[id] == 0 {
			w.startNodeIDs = append(w.startNodeIDs, id)
		}

		if out[id] == 0 {
			w.endNodeIDs = append(w.endNodeIDs, id)
		}
	}

	if len(w.startNodeIDs) == 0 {
		return NewInvariantViolation("workflow %s must expose at least one start node", w.def.ID)
	}

	if len(w.endNodeIDs) == 0 {
		return NewInvariantViolation("workflow %s must expose at least one end node", w.def.ID)
	}

	return nil
}

func (w *Workflow) addDataBindings(bindings []DataBinding) error {
	slots := make(map[string]struct{}, len(bindings))

	for _, raw := range bindings {
		binding, err := NewDataBinding(raw.SourceNodeID, raw.SourceOutput, raw.TargetNodeID, raw.TargetInput)
		if err != nil {
			return err
		}

		source, ok := w.nodesByID[binding.SourceNodeID]
		if !ok {
			return NewInvariantViolation("data binding references unknown source node %s", binding.SourceNodeID)
		}

		target, ok := w.nodesByID[binding.TargetNodeID]
		if !ok {
			return NewInvariantViolation("data binding references unknown target node %s", binding.TargetNodeID)
		}

		if len(target.Inputs) > 0 && !target.HasPort(PortDirectionInput, binding.TargetInput) {
			return NewInvariantViolation("node %s does not declare input %s", target.ID, binding.TargetInput)
		}

		if binding.SourceOutput != "" && len(source.Outputs) > 0 &&
			!source.HasPort(PortDirectionOutput, binding.SourceOutput) {
			return NewInvariantViolation("node %s does not declare output %s", source.ID, binding.SourceOutput)
		}

		if _, dup := slots[binding.Key()]; dup {
			return NewDuplicateError("input %s of node %s is already bound", binding.TargetInput, target.ID)
		}

		slots[binding.Key()] = struct{}{}
		w.def.DataBindings = append(w.def.DataBindings, binding)
		w.bindingsByNode[binding.TargetNodeID] = append(w.bindingsByNode[binding.TargetNodeID], binding)
	}

	for _, id := range w.nodeOrder {
		for _, input := range w.nodesByID[id].RequiredInputs() {
			if _, ok := slots[id+"."+input]; !ok {
				return NewInvariantViolation("required input %s of node %s has no data binding", input, id)
			}
		}
	}

	return nil
}

func (w *Workflow) addStreams(streams []Stream) error {
	seen := make(map[string]struct{}, len(streams))

	for _, raw := range streams {
		stream, err := NewStream(raw.From, raw.To, raw.Output)
		if err != nil {
			return err
		}

		if _, ok := w.nodesByID[stream.From]; !ok {
			return NewInvariantViolation("stream references unknown source node %s", stream.From)
		}

		if _, ok := w.nodesByID[stream.To]; !ok {
			return NewInvariantViolation("stream references unknown target node %s", stream.To)
		}

		if _, dup := seen[stream.Key()]; dup {
			return NewDuplicateError("node %s already receives data from %s", stream.To, stream.From)
		}

		seen[stream.Key()] = struct{}{}
		w.def.Streams = append(w.def.Streams, stream)
	}

	return nil
}

// ID returns the workflow id.
func (w *Workflow) ID() string { return w.def.ID }

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.def.Name }

// Description returns the workflow description.
func (w *Workflow) Description() string { return w.def.Description }

// Node looks up a node by id.
func (w *Workflow) Node(id string) (Node, bool) {
	node, ok := w.nodesByID[id]
	if !ok {
		return Node{}, false
	}

	return node.clone(), true
}

// Nodes returns the nodes in declaration order.
func (w *Workflow) Nodes() []Node {
	out := make([]Node, 0, len(w.nodeOrder))
	for _, id := range w.nodeOrder {
		out = append(out, w.nodesByID[id].clone())
	}

	return out
}

// NodeIDs returns the node ids in declaration order.
func (w *Workflow) NodeIDs() []string {
	return append([]string(nil), w.nodeOrder...)
}

// Edges returns every edge in declaration order.
func (w *Workflow) Edges() []Edge {
	return cloneEdges(w.def.Edges)
}

// OutgoingEdges returns the edges leaving the node in declaration order.
func (w *Workflow) OutgoingEdges(id string) []Edge {
	return cloneEdges(w.edgesBySource[id])
}

// IncomingEdges returns the edges entering the node in declaration order.
func (w *Workflow) IncomingEdges(id string) []Edge {
	return cloneEdges(w.edgesByTarget[id])
}

// DataBindings returns every data binding.
func (w *Workflow) DataBindings() []DataBinding {
	return append([]DataBinding(nil), w.def.DataBindings...)
}

// BindingsFor returns the data bindings that feed the node.
func (w *Workflow) BindingsFor(id string) []DataBinding {
	return append([]DataBinding(nil), w.bindingsByNode[id]...)
}

// Streams returns every stream.
func (w *Workflow) Streams() []Stream {
	return append([]Stream(nil), w.def.Streams...)
}

// StartNodeIDs returns the ids of nodes with no incoming edge.
func (w *Workflow) StartNodeIDs() []string {
	return append([]string(nil), w.startNodeIDs...)
}

// EndNodeIDs returns the ids of nodes with no outgoing edge to another node.
func (w *Workflow) EndNodeIDs() []string {
	return append([]string(nil), w.endNodeIDs...)
}

// StartNodes returns the start candidates.
func (w *Workflow) StartNodes() []Node {
	return w.lookup(w.startNodeIDs)
}

// EndNodes returns the end candidates.
func (w *Workflow) EndNodes() []Node {
	return w.lookup(w.endNodeIDs)
}

// Definition returns a copy of the validated definition, suitable for persistence.
func (w *Workflow) Definition() WorkflowDefinition {
	def := w.def
	def.Nodes = w.Nodes()
	def.Edges = w.Edges()
	def.DataBindings = w.DataBindings()
	def.Streams = w.Streams()
	def.Metadata = cloneMap(w.def.Metadata)

	return def
}

func (w *Workflow) lookup(ids []string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.nodesByID[id].clone())
	}

	return out
}

func cloneEdges(edges []Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge.clone())
	}

	return out
}
