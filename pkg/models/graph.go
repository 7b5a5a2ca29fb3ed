package models

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// adjacency maps each node to its edge targets. Terminal edges and unknown endpoints are skipped.
func adjacency(nodeIDs []string, edges []Edge) map[string][]string {
	adj := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		adj[id] = nil
	}

	for _, edge := range edges {
		if _, ok := adj[edge.From]; !ok || edge.IsTerminal() {
			continue
		}

		if _, ok := adj[edge.To]; ok {
			adj[edge.From] = append(adj[edge.From], edge.To)
		}
	}

	return adj
}

// hasCycle runs a three colour depth first search and reports whether any back edge exists.
func hasCycle(nodeIDs []string, edges []Edge) bool {
	adj := adjacency(nodeIDs, edges)
	states := make(map[string]visitState, len(nodeIDs))

	var visit func(id string) bool

	visit = func(id string) bool {
		switch states[id] {
		case visiting:
			return true
		case visited:
			return false
		case unvisited:
		}

		states[id] = visiting

		for _, next := range adj[id] {
			if visit(next) {
				return true
			}
		}

		states[id] = visited

		return false
	}

	for _, id := range nodeIDs {
		if visit(id) {
			return true
		}
	}

	return false
}

// computeDegrees counts node-to-node edges. A terminal edge marks its source as an end node, so it adds
// no out-degree.
func computeDegrees(nodeIDs []string, edges []Edge) (in, out map[string]int) {
	in = make(map[string]int, len(nodeIDs))
	out = make(map[string]int, len(nodeIDs))

	for _, id := range nodeIDs {
		in[id] = 0
		out[id] = 0
	}

	for _, edge := range edges {
		if edge.IsTerminal() {
			continue
		}

		if _, ok := out[edge.From]; ok {
			out[edge.From]++
		}

		if _, ok := in[edge.To]; ok {
			in[edge.To]++
		}
	}

	return in, out
}
