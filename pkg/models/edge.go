package models

// Edge connects two nodes. An empty To marks a terminal edge.
type Edge struct {
	From      string     `json:"from"                yaml:"from"`
	To        string     `json:"to,omitempty"        yaml:"to,omitempty"`
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Priority  *int       `json:"priority,omitempty"  yaml:"priority,omitempty"`
}

// IsTerminal reports whether the edge has no target.
func (e Edge) IsTerminal() bool {
	return e.To == ""
}

// HasPriority reports whether an explicit priority was set.
func (e Edge) HasPriority() bool {
	return e.Priority != nil
}

// RouteKey identifies an edge by source, target and condition signature.
func (e Edge) RouteKey() string {
	to := e.To
	if to == "" {
		to = "end"
	}

	return e.From + "->" + to + ":" + e.Condition.Signature()
}

// Priority returns a pointer to p, for building edges in code.
func Priority(p int) *int {
	return &p
}

func (e Edge) clone() Edge {
	e.Condition = e.Condition.clone()
	if e.Priority != nil {
		p := *e.Priority
		e.Priority = &p
	}

	return e
}
