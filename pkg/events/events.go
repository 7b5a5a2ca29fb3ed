// Package events defines the run lifecycle events published while a workflow executes.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/stepflow/pkg/models"
)

type EventType string

// Topic carries every run event. Messages are keyed by run id.
const Topic = "stepflow.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStatusEvent   EventType = "run.status"
	StepStartedEvent EventType = "run.step.started"
	StepEndedEvent   EventType = "run.step.ended"
	RunDoneEvent     EventType = "run.done"
	RunLogEvent      EventType = "run.log"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Step identifies the step an event refers to.
type Step struct {
	Index int    `json:"index"`
	ID    string `json:"step_id"`
	Type  string `json:"step_type"`
	Name  string `json:"step_name,omitempty"`
}

type RunStatus struct {
	BaseEvent

	Status    string                `json:"status"`
	Error     string                `json:"error,omitempty"`
	Execution *models.ExecutionView `json:"execution,omitempty"`
}

func (e RunStatus) GetType() EventType {
	return RunStatusEvent
}

type StepStarted struct {
	BaseEvent
	Step
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepEnded struct {
	BaseEvent
	Step

	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (e StepEnded) GetType() EventType {
	return StepEndedEvent
}

type RunDone struct {
	BaseEvent

	OK        bool                  `json:"ok"`
	Error     string                `json:"error,omitempty"`
	Execution *models.ExecutionView `json:"execution,omitempty"`
}

func (e RunDone) GetType() EventType {
	return RunDoneEvent
}

// RunLog is a message published by a step, such as the log step.
type RunLog struct {
	BaseEvent

	Kind    string         `json:"kind"`
	Level   string         `json:"level,omitempty"`
	Target  string         `json:"target,omitempty"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (e RunLog) GetType() EventType {
	return RunLogEvent
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Metadata:  make(map[string]any),
	}
}

// New returns an empty event of the given type, ready to be decoded into. It returns nil for unknown types.
func New(eventType EventType) any {
	switch eventType {
	case RunStatusEvent:
		return &RunStatus{}
	case StepStartedEvent:
		return &StepStarted{}
	case StepEndedEvent:
		return &StepEnded{}
	case RunDoneEvent:
		return &RunDone{}
	case RunLogEvent:
		return &RunLog{}
	default:
		return nil
	}
}
