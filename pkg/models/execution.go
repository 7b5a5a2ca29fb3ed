package models

import "time"

// NodeExecutionRecord is the persisted form of a NodeExecution.
type NodeExecutionRecord struct {
	NodeID      string          `json:"nodeId"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Outputs     any             `json:"outputs,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ExecutionRecord is the persisted form of a WorkflowExecution.
type ExecutionRecord struct {
	ID              string                `json:"id"`
	WorkflowID      string                `json:"workflowId"`
	Status          ExecutionStatus       `json:"status"`
	ExpectedNodeIDs []string              `json:"expectedNodeIds,omitempty"`
	Nodes           []NodeExecutionRecord `json:"nodes"`
	Metrics         []Metric              `json:"metrics"`
	Result          *Result               `json:"result,omitempty"`
	StartedAt       *time.Time            `json:"startedAt,omitempty"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty"`
}

// WorkflowExecution is the ledger of one run of a workflow. It is owned by a single run and is not safe for
// concurrent use.
type WorkflowExecution struct {
	id          string
	workflowID  string
	status      ExecutionStatus
	startedAt   *time.Time
	completedAt *time.Time
	result      *Result

	expected  map[string]struct{}
	nodes     map[string]*NodeExecution
	nodeOrder []string

	metrics       []Metric
	metricsShapes map[string]metricShape
}

// NewWorkflowExecution creates a NotStarted ledger. When expectedNodeIDs is non-empty only those nodes may be
// touched, and every one of them must succeed before the execution auto-completes.
func NewWorkflowExecution(id, workflowID string, expectedNodeIDs []string) (*WorkflowExecution, error) {
	execID, err := requireNonBlank(id, "execution id")
	if err != nil {
		return nil, err
	}

	wfID, err := requireNonBlank(workflowID, "execution workflow id")
	if err != nil {
		return nil, err
	}

	exec := &WorkflowExecution{
		id:            execID,
		workflowID:    wfID,
		status:        StatusNotStarted,
		expected:      make(map[string]struct{}, len(expectedNodeIDs)),
		nodes:         make(map[string]*NodeExecution, len(expectedNodeIDs)),
		metricsShapes: make(map[string]metricShape),
	}

	for _, nodeID := range expectedNodeIDs {
		nid, err := requireNonBlank(nodeID, "expected node id")
		if err != nil {
			return nil, err
		}

		if _, dup := exec.expected[nid]; dup {
			continue
		}

		exec.expected[nid] = struct{}{}
		exec.track(newNodeExecution(nid))
	}

	return exec, nil
}

// RestoreExecution rebuilds a ledger from its persisted record.
func RestoreExecution(rec ExecutionRecord) (*WorkflowExecution, error) {
	exec, err := NewWorkflowExecution(rec.ID, rec.WorkflowID, rec.ExpectedNodeIDs)
	if err != nil {
		return nil, err
	}

	status, err := ParseExecutionStatus(string(rec.Status))
	if err != nil {
		return nil, err
	}

	exec.status = status
	exec.startedAt = copyTime(rec.StartedAt)
	exec.completedAt = copyTime(rec.CompletedAt)
	exec.result = rec.Result.clone()

	for _, nodeRec := range rec.Nodes {
		nodeID, err := requireNonBlank(nodeRec.NodeID, "node execution node id")
		if err != nil {
			return nil, err
		}

		nodeStatus, err := ParseExecutionStatus(string(nodeRec.Status))
		if err != nil {
			return nil, err
		}

		if err := exec.assertKnownNode(nodeID); err != nil {
			return nil, err
		}

		node, ok := exec.nodes[nodeID]
		if !ok {
			node = newNodeExecution(nodeID)
			exec.track(node)
		}

		node.status = nodeStatus
		node.startedAt = copyTime(nodeRec.StartedAt)
		node.completedAt = copyTime(nodeRec.CompletedAt)
		node.outputs = cloneValue(nodeRec.Outputs)
		node.err = nodeRec.Error
	}

	for _, metric := range rec.Metrics {
		if err := exec.AddMetric(metric); err != nil {
			return nil, err
		}
	}

	return exec, nil
}

// ExpectNodes installs an allowlist on a ledger that was created without one. Nodes touched so far must be
// part of it.
func (e *WorkflowExecution) ExpectNodes(nodeIDs []string) error {
	if len(e.expected) > 0 {
		return NewInvalidTransition("execution %s already has expected nodes", e.id)
	}

	if e.status.IsTerminal() {
		return NewInvalidTransition("execution %s is %s", e.id, e.status)
	}

	expected := make(map[string]struct{}, len(nodeIDs))

	for _, nodeID := range nodeIDs {
		nid, err := requireNonBlank(nodeID, "expected node id")
		if err != nil {
			return err
		}

		expected[nid] = struct{}{}
	}

	for _, id := range e.nodeOrder {
		if _, ok := expected[id]; !ok {
			return NewInvariantViolation("node %s was touched but is not expected in execution %s", id, e.id)
		}
	}

	e.expected = expected

	for _, nodeID := range nodeIDs {
		nid, _ := requireNonBlank(nodeID, "expected node id")
		if _, ok := e.nodes[nid]; !ok {
			e.track(newNodeExecution(nid))
		}
	}

	return nil
}

// Start moves the execution from NotStarted to Running.
func (e *WorkflowExecution) Start() error {
	if e.status != StatusNotStarted {
		return NewInvalidTransition("execution %s can only start from NotStarted (is %s)", e.id, e.status)
	}

	now := e.now()
	e.status = StatusRunning
	e.startedAt = &now

	return nil
}

// StartNode marks the node Running.
func (e *WorkflowExecution) StartNode(nodeID string) error {
	node, err := e.runningNode(nodeID)
	if err != nil {
		return err
	}

	return node.start(e.now())
}

// CompleteNode marks the node Succeeded and completes the execution once every tracked node has succeeded.
func (e *WorkflowExecution) CompleteNode(nodeID string, outputs any) error {
	node, err := e.runningNode(nodeID)
	if err != nil {
		return err
	}

	now := e.now()
	if err := node.succeed(cloneValue(outputs), now); err != nil {
		return err
	}

	e.autoComplete(outputs, now)

	return nil
}

// FailNode marks the node Failed. The first node failure fails the whole execution.
func (e *WorkflowExecution) FailNode(nodeID, cause string) error {
	node, err := e.runningNode(nodeID)
	if err != nil {
		return err
	}

	now := e.now()
	if err := node.fail(cause, now); err != nil {
		return err
	}

	e.markFailed(cause, now)

	return nil
}

// CancelNode cancels a node that has not completed. A Running execution is cancelled with it.
func (e *WorkflowExecution) CancelNode(nodeID string) error {
	node, err := e.node(nodeID)
	if err != nil {
		return err
	}

	now := e.now()
	if err := node.cancel(now); err != nil {
		return err
	}

	if e.status == StatusRunning {
		e.finish(StatusCancelled, &Result{Success: false}, now)
	}

	return nil
}

// MarkCancelled cancels the execution. It does nothing once the execution is terminal.
func (e *WorkflowExecution) MarkCancelled() {
	if e.status.IsTerminal() {
		return
	}

	e.finish(StatusCancelled, &Result{Success: false}, e.now())
}

// Finish succeeds a Running execution whose traversal ended before every tracked node ran, such as when a
// branch was not taken. Untouched nodes are cancelled.
func (e *WorkflowExecution) Finish(outputs any) error {
	if err := e.assertRunning(); err != nil {
		return err
	}

	now := e.now()

	for _, id := range e.nodeOrder {
		node := e.nodes[id]
		switch node.status {
		case StatusNotStarted:
			node.status = StatusCancelled
			node.completedAt = &now
		case StatusRunning:
			return NewInvariantViolation("execution %s cannot finish while node %s is running", e.id, id)
		case StatusSucceeded, StatusFailed, StatusCancelled:
		}
	}

	e.finish(StatusSucceeded, &Result{Success: true, Outputs: cloneValue(outputs)}, now)

	return nil
}

// Abort fails a Running execution for a reason outside any node, such as a session that could not start.
func (e *WorkflowExecution) Abort(cause string) error {
	if err := e.assertRunning(); err != nil {
		return err
	}

	e.markFailed(cause, e.now())

	return nil
}

// AddMetric appends a metric. A key keeps the type and unit it was first recorded with.
func (e *WorkflowExecution) AddMetric(m Metric) error {
	metric, err := NewMetric(m.Key, m.Type, m.Value, m.Unit, m.Timestamp)
	if err != nil {
		return err
	}

	shape := metricShape{typ: metric.Type, unit: metric.Unit}
	if known, ok := e.metricsShapes[metric.Key]; ok {
		if known != shape {
			return NewInvariantViolation("metric %s changed type/unit from %s/%s to %s/%s",
				metric.Key, known.typ, known.unit, shape.typ, shape.unit)
		}
	} else {
		e.metricsShapes[metric.Key] = shape
	}

	e.metrics = append(e.metrics, metric)

	return nil
}

// ID returns the execution id.
func (e *WorkflowExecution) ID() string { return e.id }

// WorkflowID returns the id of the executed workflow.
func (e *WorkflowExecution) WorkflowID() string { return e.workflowID }

// Status returns the workflow level status.
func (e *WorkflowExecution) Status() ExecutionStatus { return e.status }

// StartedAt returns the start time, if any.
func (e *WorkflowExecution) StartedAt() *time.Time { return copyTime(e.startedAt) }

// CompletedAt returns the completion time, if any.
func (e *WorkflowExecution) CompletedAt() *time.Time { return copyTime(e.completedAt) }

// Result returns a copy of the terminal result, or nil while the execution is not terminal.
func (e *WorkflowExecution) Result() *Result { return e.result.clone() }

// NodeExecution returns the node execution for the id, if the node was tracked.
func (e *WorkflowExecution) NodeExecution(nodeID string) (*NodeExecution, bool) {
	node, ok := e.nodes[nodeID]

	return node, ok
}

// NodeExecutions returns the tracked node executions, expected nodes first.
func (e *WorkflowExecution) NodeExecutions() []*NodeExecution {
	out := make([]*NodeExecution, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		out = append(out, e.nodes[id])
	}

	return out
}

// ExpectedNodeIDs returns the allowlist of node ids, in the order they were given.
func (e *WorkflowExecution) ExpectedNodeIDs() []string {
	var ids []string

	for _, id := range e.nodeOrder {
		if _, ok := e.expected[id]; ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// Metrics returns the recorded metrics in insertion order.
func (e *WorkflowExecution) Metrics() []Metric {
	return append([]Metric(nil), e.metrics...)
}

// Record returns the persisted form of the ledger.
func (e *WorkflowExecution) Record() ExecutionRecord {
	nodes := make([]NodeExecutionRecord, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		nodes = append(nodes, e.nodes[id].record())
	}

	return ExecutionRecord{
		ID:              e.id,
		WorkflowID:      e.workflowID,
		Status:          e.status,
		ExpectedNodeIDs: e.ExpectedNodeIDs(),
		Nodes:           nodes,
		Metrics:         e.Metrics(),
		Result:          e.result.clone(),
		StartedAt:       copyTime(e.startedAt),
		CompletedAt:     copyTime(e.completedAt),
	}
}

func (e *WorkflowExecution) now() time.Time {
	return time.Now().UTC()
}

func (e *WorkflowExecution) track(node *NodeExecution) {
	e.nodes[node.nodeID] = node
	e.nodeOrder = append(e.nodeOrder, node.nodeID)
}

func (e *WorkflowExecution) assertRunning() error {
	if e.status != StatusRunning {
		return NewInvalidTransition("execution %s is not running (is %s)", e.id, e.status)
	}

	return nil
}

func (e *WorkflowExecution) assertKnownNode(nodeID string) error {
	if len(e.expected) == 0 {
		return nil
	}

	if _, ok := e.expected[nodeID]; !ok {
		return NewNotFoundError("node %s is not part of workflow execution %s", nodeID, e.id)
	}

	return nil
}

func (e *WorkflowExecution) runningNode(nodeID string) (*NodeExecution, error) {
	if err := e.assertRunning(); err != nil {
		return nil, err
	}

	return e.node(nodeID)
}

func (e *WorkflowExecution) node(nodeID string) (*NodeExecution, error) {
	id, err := requireNonBlank(nodeID, "node id")
	if err != nil {
		return nil, err
	}

	if err := e.assertKnownNode(id); err != nil {
		return nil, err
	}

	node, ok := e.nodes[id]
	if !ok {
		node = newNodeExecution(id)
		e.track(node)
	}

	return node, nil
}

// autoComplete succeeds the execution when every tracked node has succeeded. The outputs of the node that
// completed last become the result outputs.
func (e *WorkflowExecution) autoComplete(outputs any, now time.Time) {
	for _, id := range e.nodeOrder {
		if e.nodes[id].status != StatusSucceeded {
			return
		}
	}

	e.finish(StatusSucceeded, &Result{Success: true, Outputs: cloneValue(outputs)}, now)
}

func (e *WorkflowExecution) markFailed(cause string, now time.Time) {
	if cause == "" {
		cause = DefaultFailureError
	}

	e.finish(StatusFailed, &Result{Success: false, Error: cause}, now)
}

func (e *WorkflowExecution) finish(status ExecutionStatus, result *Result, now time.Time) {
	e.status = status
	e.completedAt = &now
	result.FinishedAt = now
	e.result = result
}
