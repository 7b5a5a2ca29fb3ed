package models

import "time"

// DefaultFailureError is recorded when a node fails without a message.
const DefaultFailureError = "workflow_failed"

// Result is the terminal outcome of a workflow execution.
type Result struct {
	Success    bool      `json:"success"`
	Outputs    any       `json:"outputs,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}

	out := *r
	out.Outputs = cloneValue(r.Outputs)

	return &out
}
