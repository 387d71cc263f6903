package orchestrator

import (
	"fmt"
	"time"

	"github.com/autofin/autofin/pkg/confidence"
	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/workflow"
)

// Outcome statuses for one task.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomePaused    = "paused"
)

// Failure reasons.
const (
	ReasonCompletionNotDetected = "completion_not_detected"
	ReasonUserInputRequired     = "user_input_required"
)

// Outcome is the per-task result of a pipeline run. Continue/abort decisions
// are made on this data, never on recovering control flow.
type Outcome struct {
	Task     models.Task          `json:"task"`
	Status   string               `json:"status"`
	Reason   string               `json:"reason,omitempty"`
	Err      error                `json:"-"`
	Error    string               `json:"error,omitempty"`
	Analysis *confidence.Analysis `json:"analysis,omitempty"`
	State    *workflow.State      `json:"-"`
}

// RunMetadata aggregates counts for one run.
type RunMetadata struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedCount int `json:"completed_count"`
	FailedCount    int `json:"failed_count"`
	PausedCount    int `json:"paused_count"`
}

// RunResult is the write-once record of one orchestration run. Success stays
// true even when individual tasks failed; it flips to false only when a
// setup stage (parse, sequence) failed and no task could be attempted.
type RunResult struct {
	SessionID  string        `json:"session_id"`
	Success    bool          `json:"success"`
	Tasks      []models.Task `json:"tasks"`
	Completed  []Outcome     `json:"completed_tasks"`
	Failed     []Outcome     `json:"failed_tasks"`
	Paused     []Outcome     `json:"paused_tasks"`
	Metadata   RunMetadata   `json:"metadata"`
	Summary    string        `json:"summary"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

func (r *RunResult) record(outcome Outcome) {
	switch outcome.Status {
	case OutcomeCompleted:
		r.Completed = append(r.Completed, outcome)
		r.Metadata.CompletedCount++
	case OutcomePaused:
		r.Paused = append(r.Paused, outcome)
		r.Metadata.PausedCount++
	default:
		r.Failed = append(r.Failed, outcome)
		r.Metadata.FailedCount++
	}
}

// summarize picks the one-line run summary by precedence: everything
// completed, some completed, nothing completed but some paused, else all
// failures.
func (r *RunResult) summarize() {
	total := r.Metadata.TotalTasks
	completed := r.Metadata.CompletedCount
	failed := r.Metadata.FailedCount
	paused := r.Metadata.PausedCount

	switch {
	case total > 0 && completed == total:
		r.Summary = fmt.Sprintf("all %d tasks completed", total)
	case completed > 0:
		r.Summary = fmt.Sprintf("%d/%d tasks completed, %d failed, %d paused", completed, total, failed, paused)
	case paused > 0:
		r.Summary = fmt.Sprintf("%d tasks paused, %d failed", paused, failed)
	default:
		r.Summary = fmt.Sprintf("%d/%d tasks failed", failed, total)
	}
}
