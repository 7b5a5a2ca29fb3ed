package models

// FeedbackSummary counts how far a run got through its workflow.
type FeedbackSummary struct {
	WorkflowID     string          `json:"workflowId"`
	WorkflowName   string          `json:"workflowName"`
	ExecutionID    string          `json:"executionId"`
	Status         ExecutionStatus `json:"status"`
	TotalNodes     int             `json:"totalNodes"`
	CompletedNodes int             `json:"completedNodes"`
	FailedNodes    int             `json:"failedNodes"`
	WaitingNodes   int             `json:"waitingNodes"`
	PendingNodes   int             `json:"pendingNodes"`
	SkippedNodes   int             `json:"skippedNodes"`
	Edges          int             `json:"edges"`
	DataBindings   int             `json:"dataBindings"`
}

// MetricSummary aggregates the samples recorded under one metric key.
type MetricSummary struct {
	Key     string `json:"key"`
	Type    string `json:"type"`
	Unit    string `json:"unit,omitempty"`
	Samples int    `json:"samples"`
	Latest  any    `json:"latest"`
}

// ActionItem is a follow-up suggested for a node, or for the whole run when NodeID is empty.
type ActionItem struct {
	NodeID         string `json:"nodeId,omitempty"`
	NodeName       string `json:"nodeName,omitempty"`
	Recommendation string `json:"recommendation"`
}

// Feedback is a post-run report for the authors of a workflow.
type Feedback struct {
	Summary     FeedbackSummary `json:"summary"`
	Notes       string          `json:"notes,omitempty"`
	Metrics     []MetricSummary `json:"metrics"`
	ActionItems []ActionItem    `json:"actionItems"`
}

const (
	recommendFailure = "Investigate failure: "
	recommendPending = "Input bindings or conditions might be missing; review definition."
	recommendSuccess = "Workflow executed successfully. Consider capturing best practices in notes."
)

// NewFeedback reports on exec as a run of wf. Nodes that never started are pending, nodes skipped by
// branching are counted as skipped.
func NewFeedback(wf *Workflow, exec *WorkflowExecution, notes string) (*Feedback, error) {
	if wf == nil || exec == nil {
		return nil, NewValidationError("workflow and execution are required")
	}

	if exec.WorkflowID() != wf.ID() {
		return nil, NewInvariantViolation("execution %s belongs to workflow %s, not %s", exec.ID(), exec.WorkflowID(), wf.ID())
	}

	feedback := &Feedback{
		Summary: FeedbackSummary{
			WorkflowID:   wf.ID(),
			WorkflowName: wf.Name(),
			ExecutionID:  exec.ID(),
			Status:       exec.Status(),
			TotalNodes:   len(wf.NodeIDs()),
			Edges:        len(wf.Edges()),
			DataBindings: len(wf.DataBindings()),
		},
		Notes:       notes,
		Metrics:     summarizeMetrics(exec.Metrics()),
		ActionItems: []ActionItem{},
	}

	var pending []Node

	for _, node := range wf.Nodes() {
		status := StatusNotStarted
		if nodeExec, ok := exec.NodeExecution(node.ID); ok {
			status = nodeExec.Status()
		}

		switch status {
		case StatusSucceeded:
			feedback.Summary.CompletedNodes++
		case StatusFailed:
			feedback.Summary.FailedNodes++

			nodeExec, _ := exec.NodeExecution(node.ID)

			cause := nodeExec.Error()
			if cause == "" {
				cause = "unknown cause"
			}

			feedback.ActionItems = append(feedback.ActionItems, ActionItem{
				NodeID:         node.ID,
				NodeName:       nodeName(node),
				Recommendation: recommendFailure + cause,
			})
		case StatusRunning:
			feedback.Summary.WaitingNodes++
		case StatusCancelled:
			feedback.Summary.SkippedNodes++
		case StatusNotStarted:
			feedback.Summary.PendingNodes++
			pending = append(pending, node)
		}
	}

	// Failures come first, then nodes that never ran.
	for _, node := range pending {
		feedback.ActionItems = append(feedback.ActionItems, ActionItem{
			NodeID:         node.ID,
			NodeName:       nodeName(node),
			Recommendation: recommendPending,
		})
	}

	s := feedback.Summary
	if s.WaitingNodes == 0 && s.FailedNodes == 0 && s.PendingNodes == 0 {
		feedback.ActionItems = append(feedback.ActionItems, ActionItem{Recommendation: recommendSuccess})
	}

	return feedback, nil
}

func nodeName(node Node) string {
	if node.Name != "" {
		return node.Name
	}

	return node.ID
}

func summarizeMetrics(metrics []Metric) []MetricSummary {
	summaries := make([]MetricSummary, 0)
	index := make(map[string]int)

	for _, metric := range metrics {
		i, ok := index[metric.Key]
		if !ok {
			i = len(summaries)
			index[metric.Key] = i
			summaries = append(summaries, MetricSummary{Key: metric.Key, Type: metric.Type, Unit: metric.Unit})
		}

		summaries[i].Samples++
		summaries[i].Latest = metric.Value
	}

	return summaries
}
