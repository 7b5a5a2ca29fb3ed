package models

// DataBinding feeds a named input of the target node from an output of the source node.
type DataBinding struct {
	SourceNodeID string `json:"sourceNodeId"           yaml:"sourceNodeId"`
	SourceOutput string `json:"sourceOutput,omitempty" yaml:"sourceOutput,omitempty"`
	TargetNodeID string `json:"targetNodeId"           yaml:"targetNodeId"`
	TargetInput  string `json:"targetInput"            yaml:"targetInput"`
}

// Key identifies the (target, input) slot the binding fills.
func (b DataBinding) Key() string {
	return b.TargetNodeID + "." + b.TargetInput
}

// NewDataBinding validates the shape of a binding. Node references are checked by NewWorkflow.
func NewDataBinding(sourceNodeID, sourceOutput, targetNodeID, targetInput string) (DataBinding, error) {
	source, err := requireNonBlank(sourceNodeID, "data binding source node id")
	if err != nil {
		return DataBinding{}, err
	}

	target, err := requireNonBlank(targetNodeID, "data binding target node id")
	if err != nil {
		return DataBinding{}, err
	}

	input, err := requireNonBlank(targetInput, "data binding target input")
	if err != nil {
		return DataBinding{}, err
	}

	if source == target {
		return DataBinding{}, NewInvariantViolation("data binding cannot feed node %s from itself", source)
	}

	return DataBinding{
		SourceNodeID: source,
		SourceOutput: sourceOutput,
		TargetNodeID: target,
		TargetInput:  input,
	}, nil
}

// Stream declares that the whole output of one node is streamed into another.
type Stream struct {
	From   string `json:"from"             yaml:"from"`
	To     string `json:"to"               yaml:"to"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// Key identifies the stream by target and source.
func (s Stream) Key() string {
	return s.To + "<-" + s.From
}

// NewStream validates the shape of a stream.
func NewStream(from, to, output string) (Stream, error) {
	source, err := requireNonBlank(from, "stream source node id")
	if err != nil {
		return Stream{}, err
	}

	target, err := requireNonBlank(to, "stream target node id")
	if err != nil {
		return Stream{}, err
	}

	if source == target {
		return Stream{}, NewInvariantViolation("stream cannot point node %s at itself", source)
	}

	return Stream{From: source, To: target, Output: output}, nil
}
