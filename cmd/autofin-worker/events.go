package main

import (
	"context"
	"log/slog"

	"github.com/autofin/autofin/pkg/eventbus"
	"github.com/autofin/autofin/pkg/events"
)

// subscribeToEvents registers logging handlers for the pipeline events the
// worker observes and starts the subscription loop.
func subscribeToEvents(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.RunFinishedEvent: func(ctx context.Context, event any) error {
			if finished, ok := event.(*events.RunFinished); ok {
				logger.InfoContext(ctx, "run finished",
					"session_id", finished.SessionID, "summary", finished.Summary)
			}

			return nil
		},
		events.TaskPausedEvent: func(ctx context.Context, event any) error {
			if paused, ok := event.(*events.TaskPaused); ok {
				logger.InfoContext(ctx, "task paused, waiting for user input",
					"session_id", paused.SessionID, "task_id", paused.TaskID)
			}

			return nil
		},
		events.TaskFailedEvent: func(ctx context.Context, event any) error {
			if failed, ok := event.(*events.TaskFailed); ok {
				logger.WarnContext(ctx, "task failed",
					"session_id", failed.SessionID, "task_id", failed.TaskID,
					"reason", failed.Reason, "error", failed.Error)
			}

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
