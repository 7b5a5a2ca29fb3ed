// Package sink publishes the lifecycle of a run to the event bus.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/protocol"
)

var ErrMissingRunID = errors.New("run id missing from context")

// EventBusSink implements protocol.EventSink by publishing run events keyed by run id. Screenshot streaming
// is only tracked; frames are produced by browser integrations outside this package.
type EventBusSink struct {
	bus     eventbus.EventPublisher
	runID   string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	session   protocol.Session
	streaming bool
}

func NewEventBusSink(bus eventbus.EventPublisher, runID string, logger *slog.Logger, m *metrics.Metrics) *EventBusSink {
	return &EventBusSink{
		bus:     bus,
		runID:   runID,
		logger:  log.OrNop(logger).With("module", "event_sink"),
		metrics: m,
	}
}

// Factory returns a protocol.SinkFactory that creates one EventBusSink per run.
func Factory(bus eventbus.EventPublisher, m *metrics.Metrics) protocol.SinkFactory {
	return func(params protocol.SinkParams) protocol.EventSink {
		return NewEventBusSink(bus, params.RunID, params.Logger, m)
	}
}

func (s *EventBusSink) AttachBrowserSession(ctx context.Context, session protocol.Session) error {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Browser session attached", "session", fmt.Sprintf("%T", session))

	return nil
}

func (s *EventBusSink) StartScreenshotStream(ctx context.Context) error {
	s.setStreaming(ctx, true)

	return nil
}

func (s *EventBusSink) StopScreenshotStream(ctx context.Context) error {
	s.setStreaming(ctx, false)

	return nil
}

// Streaming reports whether the screenshot stream is active.
func (s *EventBusSink) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.streaming
}

func (s *EventBusSink) setStreaming(ctx context.Context, on bool) {
	s.mu.Lock()
	changed := s.streaming != on
	s.streaming = on
	s.mu.Unlock()

	if changed {
		s.logger.DebugContext(ctx, "Screenshot stream toggled", "streaming", on)
	}
}

func (s *EventBusSink) StepStart(ctx context.Context, event protocol.StepStart) error {
	return s.publish(ctx, events.StepStarted{
		BaseEvent: events.NewBaseEvent(events.StepStartedEvent, s.runID),
		Step:      step(event.Index, event.Meta),
	})
}

func (s *EventBusSink) StepEnd(ctx context.Context, event protocol.StepEnd) error {
	return s.publish(ctx, events.StepEnded{
		BaseEvent: events.NewBaseEvent(events.StepEndedEvent, s.runID),
		Step:      step(event.Index, event.Meta),
		OK:        event.OK,
		Error:     event.Error,
	})
}

// RunStatus reads the optional "error" and "execution" entries of extra.
func (s *EventBusSink) RunStatus(ctx context.Context, status string, extra map[string]any) error {
	event := events.RunStatus{
		BaseEvent: events.NewBaseEvent(events.RunStatusEvent, s.runID),
		Status:    status,
	}

	event.Error, _ = extra["error"].(string)
	event.Execution, _ = extra["execution"].(*models.ExecutionView)

	return s.publish(ctx, event)
}

func (s *EventBusSink) Done(ctx context.Context, event protocol.Done) error {
	return s.publish(ctx, events.RunDone{
		BaseEvent: events.NewBaseEvent(events.RunDoneEvent, s.runID),
		OK:        event.OK,
		Error:     event.Error,
		Execution: event.Execution,
	})
}

func (s *EventBusSink) publish(ctx context.Context, event eventbus.Event) error {
	if err := s.bus.Publish(ctx, s.runID, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.GetType(), err)
	}

	s.metrics.EventPublished(string(event.GetType()))

	return nil
}

func step(index int, meta protocol.StepMeta) events.Step {
	return events.Step{Index: index, ID: meta.StepID, Type: meta.Type, Name: meta.Name}
}

// Publisher returns a protocol.Publisher that forwards step messages as run.log events. The run id is taken
// from the context, see protocol.WithRunID.
func Publisher(bus eventbus.EventPublisher, m *metrics.Metrics) protocol.Publisher {
	return func(ctx context.Context, eventType string, payload map[string]any) error {
		runID, ok := protocol.RunIDFromContext(ctx)
		if !ok {
			return ErrMissingRunID
		}

		event := events.RunLog{
			BaseEvent: events.NewBaseEvent(events.RunLogEvent, runID),
			Kind:      eventType,
			Payload:   payload,
		}

		event.Level, _ = payload["level"].(string)
		event.Target, _ = payload["target"].(string)
		event.Message, _ = payload["message"].(string)

		if err := bus.Publish(ctx, runID, event); err != nil {
			return fmt.Errorf("publish %s: %w", events.RunLogEvent, err)
		}

		m.EventPublished(string(events.RunLogEvent))

		return nil
	}
}
