// Package events defines the event types emitted by the completion pipeline.
package events

import (
	"time"

	"github.com/autofin/autofin/pkg/confidence"
	"github.com/autofin/autofin/pkg/models"
)

type EventType string

// Topic carries all autofin pipeline events.
const Topic = "autofin.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent  EventType = "run.started"
	RunFinishedEvent EventType = "run.finished"

	TaskCompletedEvent EventType = "task.completed"
	TaskFailedEvent    EventType = "task.failed"
	TaskPausedEvent    EventType = "task.paused"

	PreferenceUpdatedEvent EventType = "preference.updated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	TaskCount int `json:"task_count"`
}

func (e RunStarted) GetType() EventType { return RunStartedEvent }

type RunFinished struct {
	BaseEvent

	CompletedCount int           `json:"completed_count"`
	FailedCount    int           `json:"failed_count"`
	PausedCount    int           `json:"paused_count"`
	Summary        string        `json:"summary"`
	Duration       time.Duration `json:"duration"`
}

func (e RunFinished) GetType() EventType { return RunFinishedEvent }

type TaskCompleted struct {
	BaseEvent

	TaskID         string                    `json:"task_id"`
	Confidence     float64                   `json:"confidence"`
	Classification confidence.Classification `json:"classification"`
}

func (e TaskCompleted) GetType() EventType { return TaskCompletedEvent }

type TaskFailed struct {
	BaseEvent

	TaskID string `json:"task_id"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (e TaskFailed) GetType() EventType { return TaskFailedEvent }

type TaskPaused struct {
	BaseEvent

	TaskID  string   `json:"task_id"`
	Reason  string   `json:"reason"`
	Markers []string `json:"markers,omitempty"`
}

func (e TaskPaused) GetType() EventType { return TaskPausedEvent }

type PreferenceUpdated struct {
	BaseEvent

	OwnerID string                 `json:"owner_id"`
	Scope   models.PreferenceScope `json:"scope"`
	Level   models.AutomationLevel `json:"level"`
}

func (e PreferenceUpdated) GetType() EventType { return PreferenceUpdatedEvent }
