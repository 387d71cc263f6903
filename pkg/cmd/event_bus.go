// Package cmd wires shared infrastructure for the autofin binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/autofin/autofin/pkg/channels/gochannel"
	"github.com/autofin/autofin/pkg/channels/kafka"
	"github.com/autofin/autofin/pkg/eventbus"
)

// NewEventBus creates an event bus on the selected channel provider. "none"
// returns nil, which callers treat as "do not publish".
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "autofin")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "none":
		return nil
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
