package definition

import "github.com/dukex/stepflow/pkg/models"

// Payload renders wf as a definition payload that Load turns back into the same graph. Port requirements are
// always written because Load defaults a missing "required" differently for inputs and outputs.
func Payload(wf *models.Workflow) map[string]any {
	nodes := make([]any, 0, len(wf.Nodes()))
	for _, node := range wf.Nodes() {
		n := map[string]any{
			"id":      node.ID,
			"type":    node.Type,
			"name":    node.Name,
			"inputs":  portsPayload(node.Inputs),
			"outputs": portsPayload(node.Outputs),
		}

		if node.Config != nil {
			n["config"] = node.Config
		}

		nodes = append(nodes, n)
	}

	edges := make([]any, 0, len(wf.Edges()))
	for _, edge := range wf.Edges() {
		e := map[string]any{"from": edge.From}

		if edge.To != "" {
			e["to"] = edge.To
		}

		if edge.Priority != nil {
			e["priority"] = *edge.Priority
		}

		if edge.Condition != nil {
			c := map[string]any{
				"type":       string(edge.Condition.Type),
				"expression": edge.Condition.Expression,
			}

			if edge.Condition.Parameters != nil {
				c["parameters"] = edge.Condition.Parameters
			}

			e["condition"] = c
		}

		edges = append(edges, e)
	}

	bindings := make([]any, 0, len(wf.DataBindings()))
	for _, b := range wf.DataBindings() {
		bindings = append(bindings, map[string]any{
			"sourceNodeId": b.SourceNodeID,
			"sourceOutput": b.SourceOutput,
			"targetNodeId": b.TargetNodeID,
			"targetInput":  b.TargetInput,
		})
	}

	streams := make([]any, 0, len(wf.Streams()))
	for _, s := range wf.Streams() {
		streams = append(streams, map[string]any{
			"from":   s.From,
			"to":     s.To,
			"output": s.Output,
		})
	}

	return map[string]any{
		"id":           wf.ID(),
		"name":         wf.Name(),
		"description":  wf.Description(),
		"nodes":        nodes,
		"edges":        edges,
		"dataBindings": bindings,
		"streams":      streams,
	}
}

func portsPayload(ports []models.Port) []any {
	out := make([]any, 0, len(ports))
	for _, port := range ports {
		out = append(out, map[string]any{"name": port.Name, "required": port.Required})
	}

	return out
}
