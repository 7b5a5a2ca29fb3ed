package main

import (
	"context"
	"log/slog"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/log"
)

// logRunEvents subscribes to the run topic and writes every lifecycle event to logger.
func logRunEvents(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.RunStatusEvent: func(ctx context.Context, event any) error {
			e := event.(*events.RunStatus)
			logger.InfoContext(ctx, "Run status", "run_id", e.RunID, "status", e.Status, "error", e.Error)

			return nil
		},
		events.StepStartedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.StepStarted)
			logger.InfoContext(ctx, "Step started", "run_id", e.RunID, "index", e.Index, "step_id", e.Step.ID, "step_type", e.Step.Type)

			return nil
		},
		events.StepEndedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.StepEnded)
			if e.OK {
				logger.InfoContext(ctx, "Step ended", "run_id", e.RunID, "step_id", e.Step.ID)
			} else {
				logger.WarnContext(ctx, "Step failed", "run_id", e.RunID, "step_id", e.Step.ID, "error", e.Error)
			}

			return nil
		},
		events.RunDoneEvent: func(ctx context.Context, event any) error {
			e := event.(*events.RunDone)
			logger.InfoContext(ctx, "Run done", "run_id", e.RunID, "ok", e.OK, "error", e.Error)

			return nil
		},
		events.RunLogEvent: func(ctx context.Context, event any) error {
			e := event.(*events.RunLog)
			logger.Log(ctx, log.ParseLevel(e.Level), e.Message, "run_id", e.RunID, "kind", e.Kind, "target", e.Target)

			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
