package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the sentinel all InvalidTransitionError values
// match via errors.Is.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// InvalidTransitionError reports an attempted move not listed in the
// transition table. It names both ends so callers can log or surface the
// exact illegal move.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid workflow transition from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
