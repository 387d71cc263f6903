package orchestrator

import (
	"context"

	"github.com/autofin/autofin/pkg/models"
)

// ConfirmationResult is the outcome of asking the confirmation collaborator
// whether a task's work is acknowledged as done.
type ConfirmationResult struct {
	Confirmed bool   `json:"confirmed"`
	Method    string `json:"method,omitempty"`
}

// Confirmer solicits a completion confirmation for a task. How it does so
// (re-prompting the AI, pinging a human, reading a UI) is outside this
// module.
type Confirmer interface {
	Confirm(ctx context.Context, task models.Task, response string) (ConfirmationResult, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, task models.Task, response string) (ConfirmationResult, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, task models.Task, response string) (ConfirmationResult, error) {
	return f(ctx, task, response)
}

// QualityAssessor judges the quality of an AI response for a task. A failure
// here is non-fatal: the pipeline proceeds without quality data.
type QualityAssessor interface {
	Assess(ctx context.Context, task models.Task, response string) (*models.QualityAssessment, error)
}

// QualityAssessorFunc adapts a function to the QualityAssessor interface.
type QualityAssessorFunc func(ctx context.Context, task models.Task, response string) (*models.QualityAssessment, error)

func (f QualityAssessorFunc) Assess(ctx context.Context, task models.Task, response string) (*models.QualityAssessment, error) {
	return f(ctx, task, response)
}
