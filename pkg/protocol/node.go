// Package protocol defines the contracts between the workflow engine and its pluggable collaborators:
// step handlers, automation sessions and run event sinks.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/stepflow/pkg/models"
)

// StepHandler executes one step of a given type.
type StepHandler func(ctx context.Context, rt Runtime) (Result, error)

// Variables is the scoped variable store a handler can read and write during a run.
type Variables interface {
	SetVar(name string, value any)
	Var(name string) (any, bool)
	Variables() map[string]any
}

// Publisher forwards an arbitrary run event, such as a log line, to the outside world.
type Publisher func(ctx context.Context, eventType string, payload map[string]any) error

// StepMeta describes the step being executed in events and handler payloads.
type StepMeta struct {
	StepID string `json:"stepId"`
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
}

// Runtime is everything a handler receives for one step invocation.
type Runtime struct {
	Step       models.Step
	Session    Session
	Execution  Variables
	// Outputs holds the outputs of the steps completed so far in the run, keyed by step id.
	Outputs    map[string]any
	Meta       StepMeta
	Index      int
	RunID      string
	WorkflowID string
	Publish    Publisher
	Logger     *slog.Logger
}

// ResultKind tags which parts of a Result are set.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultNext
	ResultOutputs
	ResultNextWithOutputs
)

// Result is what a handler returns: an optional explicit next step id and optional outputs.
type Result struct {
	kind    ResultKind
	nextID  string
	outputs any
}

// NoResult means the handler has neither outputs nor a next step request.
func NoResult() Result {
	return Result{kind: ResultNone}
}

// Next requests a jump to the step with the given id.
func Next(id string) Result {
	return Result{kind: ResultNext, nextID: id}
}

// Outputs records handler outputs without overriding the next step.
func Outputs(v any) Result {
	return Result{kind: ResultOutputs, outputs: v}
}

// NextWithOutputs records outputs and requests a jump.
func NextWithOutputs(id string, v any) Result {
	return Result{kind: ResultNextWithOutputs, nextID: id, outputs: v}
}

// Kind reports which variant the result is.
func (r Result) Kind() ResultKind {
	return r.kind
}

// NextID returns the requested next step id, if any.
func (r Result) NextID() (string, bool) {
	if r.kind == ResultNext || r.kind == ResultNextWithOutputs {
		return r.nextID, r.nextID != ""
	}

	return "", false
}

// Data returns the outputs, if any.
func (r Result) Data() (any, bool) {
	if r.kind == ResultOutputs || r.kind == ResultNextWithOutputs {
		return r.outputs, true
	}

	return nil, false
}
