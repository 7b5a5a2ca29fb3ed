// Package models defines the workflow graph model and the execution ledger for browser automation runs.
package models

// Node is a single browser automation action in a workflow graph.
type Node struct {
	ID      string         `json:"id"                yaml:"id"`
	Type    string         `json:"type"              yaml:"type"`
	Name    string         `json:"name,omitempty"    yaml:"name,omitempty"`
	Inputs  []Port         `json:"inputs,omitempty"  yaml:"inputs,omitempty"`
	Outputs []Port         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Config  map[string]any `json:"config,omitempty"  yaml:"config,omitempty"`
}

// Step is the execution-facing projection of a node handed to step handlers.
type Step struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// RequiredInputs returns the names of the node inputs that must be fed by a data binding.
func (n Node) RequiredInputs() []string {
	var names []string

	for _, port := range n.Inputs {
		if port.Required {
			names = append(names, port.Name)
		}
	}

	return names
}

// HasPort reports whether the node declares the named port in the given direction.
func (n Node) HasPort(direction PortDirection, name string) bool {
	ports := n.Outputs
	if direction == PortDirectionInput {
		ports = n.Inputs
	}

	_, ok := findPort(ports, name)

	return ok
}

// Step projects the node into the shape handed to step handlers. The name falls back to the id.
func (n Node) Step() Step {
	name := n.Name
	if name == "" {
		name = n.ID
	}

	config := cloneMap(n.Config)
	if config == nil {
		config = map[string]any{}
	}

	return Step{
		ID:     n.ID,
		Name:   name,
		Type:   n.Type,
		Config: config,
	}
}

func (n Node) clone() Node {
	n.Inputs = append([]Port(nil), n.Inputs...)
	n.Outputs = append([]Port(nil), n.Outputs...)
	n.Config = cloneMap(n.Config)

	return n
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return v
	}
}
