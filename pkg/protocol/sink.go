package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/stepflow/pkg/models"
)

// Run status values reported through EventSink.RunStatus.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// StepStart is reported before a step runs.
type StepStart struct {
	Index int      `json:"index"`
	Meta  StepMeta `json:"meta"`
}

// StepEnd is reported after a step settles.
type StepEnd struct {
	Index int      `json:"index"`
	OK    bool     `json:"ok"`
	Error string   `json:"error,omitempty"`
	Meta  StepMeta `json:"meta"`
}

// Done is reported once per run after the final status.
type Done struct {
	OK        bool                  `json:"ok"`
	Error     string                `json:"error,omitempty"`
	Execution *models.ExecutionView `json:"execution"`
}

// EventSink receives the lifecycle of a run. Embed NopSink to implement only part of it.
type EventSink interface {
	AttachBrowserSession(ctx context.Context, session Session) error
	StartScreenshotStream(ctx context.Context) error
	StopScreenshotStream(ctx context.Context) error
	StepStart(ctx context.Context, event StepStart) error
	StepEnd(ctx context.Context, event StepEnd) error
	RunStatus(ctx context.Context, status string, extra map[string]any) error
	Done(ctx context.Context, event Done) error
}

// SinkParams are handed to a SinkFactory.
type SinkParams struct {
	RunID   string
	Logger  *slog.Logger
	Publish Publisher
}

// SinkFactory creates the sink for a run. It may return nil when the run is not observed.
type SinkFactory func(params SinkParams) EventSink

// NopSink implements EventSink by doing nothing.
type NopSink struct{}

func (NopSink) AttachBrowserSession(context.Context, Session) error { return nil }
func (NopSink) StartScreenshotStream(context.Context) error { return nil }
func (NopSink) StopScreenshotStream(context.Context) error { return nil }
func (NopSink) StepStart(context.Context, StepStart) error { return nil }
func (NopSink) StepEnd(context.Context, StepEnd) error { return nil }
func (NopSink) RunStatus(context.Context, string, map[string]any) error { return nil }
func (NopSink) Done(context.Context, Done) error { return nil }
