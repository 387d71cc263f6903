// Package eventbus provides the event-driven notification channel for
// pipeline observers. Publishing is fire-and-forget from the orchestrator's
// point of view: a failed emit never aborts a run.
package eventbus

import (
	"context"

	"github.com/autofin/autofin/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
