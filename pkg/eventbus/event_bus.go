// Package eventbus carries run events between the runner and its observers.
package eventbus

import (
	"context"

	"github.com/dukex/stepflow/pkg/events"
)

// Event is anything published on the run topic.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is what the run sink needs. key is the run id, so one run's events stay ordered on a
// partitioned transport.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber delivers decoded events to the handler registered for their type. Handlers must be
// registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the event type returned by events.New.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

var _ EventBus = (*WatermillEventBus)(nil)
