package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allStatuses enumerates every member of the status set for exhaustive
// legality checks.
var allStatuses = []Status{
	StatusUninitialized,
	StatusPending,
	StatusValidating,
	StatusExecuting,
	StatusRunning,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusRolledBack,
}

func TestNewState(t *testing.T) {
	state := NewState()

	assert.NotEmpty(t, state.ID())
	assert.Equal(t, StatusUninitialized, state.Status())
	assert.Empty(t, state.History())
	assert.Empty(t, state.Data())
	assert.False(t, state.CreatedAt().IsZero())
}

func TestTransitionLegalityTable(t *testing.T) {
	allowed := map[Status][]Status{
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

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			state := NewStateWithStatus(from)

			legal := false
			for _, a := range allowed[from] {
				if a == to {
					legal = true
				}
			}

			next, err := state.TransitionTo(to, nil, nil)
			if legal {
				require.NoError(t, err, "%s -> %s should be legal", from, to)
				assert.Equal(t, to, next.Status())

				continue
			}

			require.Error(t, err, "%s -> %s should be illegal", from, to)

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, from, invalid.From)
			assert.Equal(t, to, invalid.To)
			assert.True(t, errors.Is(err, ErrInvalidTransition))

			// The original state is untouched by the failed attempt.
			assert.Equal(t, from, state.Status())
			assert.Empty(t, state.History())
		}
	}
}

func TestUninitializedExecutingFastPath(t *testing.T) {
	state := NewState()

	next, err := state.TransitionTo(StatusExecuting, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuting, next.Status())
}

func TestTransitionImmutability(t *testing.T) {
	state := NewState()

	next, err := state.TransitionTo(StatusValidating, map[string]any{"attempt": 1}, nil)
	require.NoError(t, err)

	// The predecessor kept its status, data and history.
	assert.Equal(t, StatusUninitialized, state.Status())
	assert.Empty(t, state.Data())
	assert.Empty(t, state.History())

	assert.Equal(t, StatusValidating, next.Status())
	assert.Equal(t, 1, next.Data()["attempt"])
	assert.Len(t, next.History(), 1)
	assert.Equal(t, state.ID(), next.ID(), "identity is stable across transitions")
}

func TestDataMergedNotReplaced(t *testing.T) {
	state := NewState()

	s1, err := state.TransitionTo(StatusValidating, map[string]any{"a": 1}, nil)
	require.NoError(t, err)

	s2, err := s1.TransitionTo(StatusExecuting, map[string]any{"b": 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, s2.Data())
}

func TestHistoryReconstructsData(t *testing.T) {
	state := NewState()

	s1, err := state.TransitionTo(StatusValidating, map[string]any{"a": 1}, nil)
	require.NoError(t, err)

	s2 := s1.WithData("b", 2)

	s3, err := s2.TransitionTo(StatusExecuting, map[string]any{"a": 3, "c": 4}, nil)
	require.NoError(t, err)

	reconstructed := map[string]any{}
	for _, entry := range s3.History() {
		for k, v := range entry.Data {
			reconstructed[k] = v
		}
	}

	assert.Equal(t, s3.Data(), reconstructed)
}

func TestHistoryGrowsByOne(t *testing.T) {
	state := NewState()

	s1, err := state.TransitionTo(StatusValidating, nil, nil)
	require.NoError(t, err)
	assert.Len(t, s1.History(), 1)
	assert.Equal(t, ActionTransitioned, s1.History()[0].Action)

	s2 := s1.WithProgress(40)
	assert.Len(t, s2.History(), 2)
	assert.Equal(t, ActionProgressUpdated, s2.History()[1].Action)

	// The earlier snapshot never sees the new record.
	assert.Len(t, s1.History(), 1)
}

func TestWithProgressClamps(t *testing.T) {
	state := NewState().WithProgress(250)
	progress, ok := state.GetMetadata(MetadataProgressKey)
	require.True(t, ok)
	assert.Equal(t, 100, progress)

	state = state.WithProgress(-10)
	progress, _ = state.GetMetadata(MetadataProgressKey)
	assert.Equal(t, 0, progress)
}

func TestTerminalStatesOnlyRollBack(t *testing.T) {
	state := NewStateWithStatus(StatusRunning)

	done, err := state.TransitionTo(StatusCompleted, nil, nil)
	require.NoError(t, err)
	assert.True(t, done.IsTerminal())

	_, err = done.TransitionTo(StatusRunning, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	rolled, err := done.TransitionTo(StatusRolledBack, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRolledBack, rolled.Status())
}

func TestDuration(t *testing.T) {
	state := NewStateWithStatus(StatusRunning)

	// Non-terminal duration is measured against the wall clock.
	assert.GreaterOrEqual(t, state.Duration(), time.Duration(0))

	done, err := state.TransitionTo(StatusCompleted, nil, nil)
	require.NoError(t, err)

	frozen := done.Duration()
	assert.Equal(t, frozen, done.Duration(), "terminal duration is frozen")
}
