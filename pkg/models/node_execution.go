package models

import "time"

const unknownNodeError = "unknown_error"

// NodeExecution tracks one node within a workflow execution. Transitions are one directional.
type NodeExecution struct {
	nodeID      string
	status      ExecutionStatus
	startedAt   *time.Time
	completedAt *time.Time
	outputs     any
	err         string
}

func newNodeExecution(nodeID string) *NodeExecution {
	return &NodeExecution{nodeID: nodeID, status: StatusNotStarted}
}

func (n *NodeExecution) start(at time.Time) error {
	if n.status != StatusNotStarted {
		return NewInvalidTransition("node %s can only start from NotStarted (is %s)", n.nodeID, n.status)
	}

	n.status = StatusRunning
	n.startedAt = &at

	return nil
}

func (n *NodeExecution) succeed(outputs any, at time.Time) error {
	if n.status != StatusRunning {
		return NewInvalidTransition("node %s can only succeed from Running (is %s)", n.nodeID, n.status)
	}

	n.status = StatusSucceeded
	n.completedAt = &at
	n.outputs = outputs
	n.err = ""

	return nil
}

func (n *NodeExecution) fail(cause string, at time.Time) error {
	if n.status != StatusRunning {
		return NewInvalidTransition("node %s can only fail from Running (is %s)", n.nodeID, n.status)
	}

	if cause == "" {
		cause = unknownNodeError
	}

	n.status = StatusFailed
	n.completedAt = &at
	n.err = cause

	return nil
}

func (n *NodeExecution) cancel(at time.Time) error {
	if n.status == StatusSucceeded || n.status == StatusFailed {
		return NewInvalidTransition("node %s cannot be cancelled after completion (is %s)", n.nodeID, n.status)
	}

	n.status = StatusCancelled
	n.completedAt = &at

	return nil
}

// NodeID returns the id of the node this execution tracks.
func (n *NodeExecution) NodeID() string { return n.nodeID }

// Status returns the current status.
func (n *NodeExecution) Status() ExecutionStatus { return n.status }

// StartedAt returns the start time, if any.
func (n *NodeExecution) StartedAt() *time.Time { return copyTime(n.startedAt) }

// CompletedAt returns the completion time, if any.
func (n *NodeExecution) CompletedAt() *time.Time { return copyTime(n.completedAt) }

// Outputs returns the recorded outputs.
func (n *NodeExecution) Outputs() any { return cloneValue(n.outputs) }

// Error returns the failure message, or an empty string.
func (n *NodeExecution) Error() string { return n.err }

func (n *NodeExecution) record() NodeExecutionRecord {
	return NodeExecutionRecord{
		NodeID:      n.nodeID,
		Status:      n.status,
		StartedAt:   copyTime(n.startedAt),
		CompletedAt: copyTime(n.completedAt),
		Outputs:     cloneValue(n.outputs),
		Error:       n.err,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}
