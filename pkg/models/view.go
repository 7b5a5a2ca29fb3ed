package models

import "time"

// ExecutionView is a flattened, read-only projection of a WorkflowExecution for presentation layers.
type ExecutionView struct {
	ID          string                `json:"id"`
	WorkflowID  string                `json:"workflowId"`
	Status      ExecutionStatus       `json:"status"`
	StartedAt   *time.Time            `json:"startedAt"`
	CompletedAt *time.Time            `json:"completedAt"`
	Result      *Result               `json:"result"`
	Nodes       []NodeExecutionRecord `json:"nodes"`
	Metrics     []Metric              `json:"metrics"`
}

// NewExecutionView projects the ledger. A nil execution yields nil.
func NewExecutionView(exec *WorkflowExecution) *ExecutionView {
	if exec == nil {
		return nil
	}

	rec := exec.Record()

	return &ExecutionView{
		ID:          rec.ID,
		WorkflowID:  rec.WorkflowID,
		Status:      rec.Status,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Result:      rec.Result,
		Nodes:       rec.Nodes,
		Metrics:     rec.Metrics,
	}
}

// WorkflowView is a flattened projection of a Workflow.
type WorkflowView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Nodes        []Node        `json:"nodes"`
	Edges        []Edge        `json:"edges"`
	DataBindings []DataBinding `json:"dataBindings"`
	Streams      []Stream      `json:"streams"`
	StartNodeIDs []string      `json:"startNodeIds"`
	EndNodeIDs   []string      `json:"endNodeIds"`
}

// NewWorkflowView projects the workflow. A nil workflow yields nil.
func NewWorkflowView(wf *Workflow) *WorkflowView {
	if wf == nil {
		return nil
	}

	return &WorkflowView{
		ID:           wf.ID(),
		Name:         wf.Name(),
		Description:  wf.Description(),
		Nodes:        wf.Nodes(),
		Edges:        wf.Edges(),
		DataBindings: wf.DataBindings(),
		Streams:      wf.Streams(),
		StartNodeIDs: wf.StartNodeIDs(),
		EndNodeIDs:   wf.EndNodeIDs(),
	}
}
