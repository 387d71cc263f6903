package orchestrator

import (
	"errors"
	"fmt"
)

// ErrMissingDependency is the sentinel for all MissingDependencyError values.
var ErrMissingDependency = errors.New("missing orchestrator dependency")

// MissingDependencyError reports a required collaborator that was not
// supplied at construction. Construction fails fast; there is no degraded
// mode for required dependencies.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing orchestrator dependency: %s", e.Name)
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// Stage names, used in logs, failure reasons and trace attributes.
const (
	StageParse            = "parse"
	StageSequence         = "sequence"
	StageQualityAssess    = "quality_assess"
	StageConfirm          = "confirm"
	StageFallbackDetect   = "fallback_detect"
	StageCompletionDetect = "completion_detect"
)

// StageError wraps a failure of one pipeline stage for one task. The
// orchestrator records it on the task's outcome; it only aborts the run when
// StopOnError is set.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
