// Package workflow implements an immutable workflow state machine with a full
// transition history. Every mutation returns a new State value; callers that
// share one logical workflow must serialize transitions themselves.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle position of a unit of work.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusPending       Status = "pending"
	StatusValidating    Status = "validating"
	StatusExecuting     Status = "executing"
	StatusRunning       Status = "running"
	StatusPaused        Status = "paused"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
	StatusRolledBack    Status = "rolled_back"
)

// History record actions.
const (
	ActionTransitioned    = "transitioned"
	ActionProgressUpdated = "progress_updated"
	ActionDataUpdated     = "data_updated"
	ActionMetadataUpdated = "metadata_updated"
)

// MetadataProgressKey is where WithProgress stores the 0..100 progress value.
const MetadataProgressKey = "progress"

// transitions lists, per status, which statuses may follow it. A transition
// absent from this table is illegal. The uninitialized → executing entry is a
// fast-path allowance for workflows that skip validation.
var transitions = map[Status][]Status{
	StatusUninitialized: {StatusValidating, StatusExecuting, StatusCancelled},
	StatusPending:       {StatusValidating, StatusExecuting, StatusRunning, StatusCancelled},
	StatusValidating:    {StatusExecuting, StatusFailed, StatusCancelled},
	StatusExecuting:     {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:       {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:        {StatusRunning, StatusCancelled},
	StatusCompleted:     {StatusRolledBack},
	StatusFailed:        {StatusRolledBack},
	StatusCancelled:     {StatusRolledBack},
	StatusRolledBack:    {},
}

// HistoryEntry records one successful mutation. Data and Metadata hold only
// the delta applied by that mutation, not the full maps.
type HistoryEntry struct {
	Status    Status         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
}

// State is an immutable snapshot of a workflow. All mutating operations
// return a new State and leave the receiver untouched.
type State struct {
	id        string
	status    Status
	data      map[string]any
	metadata  map[string]any
	history   []HistoryEntry
	createdAt time.Time
	updatedAt time.Time
}

// NewState creates a workflow in the uninitialized status.
func NewState() *State {
	return NewStateWithStatus(StatusUninitialized)
}

// NewStateWithStatus creates a workflow in the given initial status. Only
// uninitialized and pending are sensible entry points; the table still
// governs everything that follows.
func NewStateWithStatus(status Status) *State {
	now := time.Now()

	return &State{
		id:        uuid.New().String(),
		status:    status,
		data:      map[string]any{},
		metadata:  map[string]any{},
		history:   []HistoryEntry{},
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the workflow's opaque identifier, stable across transitions.
func (s *State) ID() string { return s.id }

// Status returns the current status.
func (s *State) Status() Status { return s.status }

// CreatedAt returns when the initial state was created.
func (s *State) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the last mutation happened.
func (s *State) UpdatedAt() time.Time { return s.updatedAt }

// History returns a copy of the append-only mutation log.
func (s *State) History() []HistoryEntry {
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)

	return out
}

// Data returns a copy of the business data map.
func (s *State) Data() map[string]any {
	return copyMap(s.data)
}

// GetData returns one business data value.
func (s *State) GetData(key string) (any, bool) {
	v, ok := s.data[key]

	return v, ok
}

// Metadata returns a copy of the bookkeeping metadata map.
func (s *State) Metadata() map[string]any {
	return copyMap(s.metadata)
}

// GetMetadata returns one metadata value.
func (s *State) GetMetadata(key string) (any, bool) {
	v, ok := s.metadata[key]

	return v, ok
}

// IsTerminal reports whether the workflow reached a terminal status. Terminal
// states admit only the rolled_back escape.
func (s *State) IsTerminal() bool {
	return s.status == StatusCompleted || s.status == StatusFailed || s.status == StatusCancelled
}

// CanTransitionTo reports whether the table allows moving to next from the
// current status.
func (s *State) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s.status] {
		if allowed == next {
			return true
		}
	}

	return false
}

// TransitionTo returns a new State in the next status with data and metadata
// merged in, or an InvalidTransitionError naming both statuses. The receiver
// is never mutated, so a failed transition leaves no partial state behind.
func (s *State) TransitionTo(next Status, data, metadata map[string]any) (*State, error) {
	if !s.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: s.status, To: next}
	}

	return s.apply(next, data, metadata, ActionTransitioned), nil
}

// WithData returns a new State with the given data value merged in. The
// status does not change; the delta is still recorded in history so the full
// data map can always be reconstructed from the log.
func (s *State) WithData(key string, value any) *State {
	return s.apply(s.status, map[string]any{key: value}, nil, ActionDataUpdated)
}

// WithMetadata returns a new State with the given metadata value set.
func (s *State) WithMetadata(key string, value any) *State {
	return s.apply(s.status, nil, map[string]any{key: value}, ActionMetadataUpdated)
}

// WithProgress returns a new State with progress metadata set to n (clamped
// to 0..100) and a progress_updated history record appended.
func (s *State) WithProgress(n int) *State {
	if n < 0 {
		n = 0
	} else if n > 100 {
		n = 100
	}

	return s.apply(s.status, nil, map[string]any{MetadataProgressKey: n}, ActionProgressUpdated)
}

// Duration returns how long the workflow has been (or was) active: wall clock
// against now while non-terminal, frozen at the last update once terminal.
func (s *State) Duration() time.Duration {
	if s.IsTerminal() || s.status == StatusRolledBack {
		return s.updatedAt.Sub(s.createdAt)
	}

	return time.Since(s.createdAt)
}

// apply builds the successor state: merged maps, bumped timestamp and one
// appended history record carrying only the deltas.
func (s *State) apply(next Status, data, metadata map[string]any, action string) *State {
	now := time.Now()

	succ := s.clone()
	succ.status = next
	succ.updatedAt = now

	for k, v := range data {
		succ.data[k] = v
	}

	for k, v := range metadata {
		succ.metadata[k] = v
	}

	succ.history = append(succ.history, HistoryEntry{
		Status:    next,
		Data:      copyMap(data),
		Metadata:  copyMap(metadata),
		Timestamp: now,
		Action:    action,
	})

	return succ
}

// clone copies the state. History shares the backing array up to len; apply
// appends to the copy only, so existing snapshots never observe new records.
func (s *State) clone() *State {
	history := make([]HistoryEntry, len(s.history))
	copy(history, s.history)

	return &State{
		id:        s.id,
		status:    s.status,
		data:      copyMap(s.data),
		metadata:  copyMap(s.metadata),
		history:   history,
		createdAt: s.createdAt,
		updatedAt: s.updatedAt,
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
