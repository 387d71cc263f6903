// Package models defines the core domain models for confidence-weighted task completion.
package models

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusPaused     TaskStatus = "paused"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskType categorizes a task for keyword matching, quality indicators and
// automation policy lookup.
type TaskType string

const (
	TaskTypeFeature    TaskType = "feature"
	TaskTypeBugfix     TaskType = "bugfix"
	TaskTypeRefactor   TaskType = "refactor"
	TaskTypeTest       TaskType = "test"
	TaskTypeDocs       TaskType = "docs"
	TaskTypeDeployment TaskType = "deployment"
	TaskTypeAnalysis   TaskType = "analysis"
	TaskTypeSecurity   TaskType = "security"
	TaskTypeGeneric    TaskType = "generic"
)

// Task is a unit of AI-assisted development work fed through the completion
// pipeline. Tasks are owned by an external store; the orchestrator reads them
// and requests status transitions.
type Task struct {
	ID           string         `json:"id"           validate:"required"`
	Type         TaskType       `json:"type"         validate:"required"`
	Status       TaskStatus     `json:"status"`
	ProjectID    string         `json:"project_id"`
	UserID       string         `json:"user_id,omitempty"`
	Title        string         `json:"title"        validate:"required,min=1"`
	Description  string         `json:"description,omitempty"`
	Priority     int            `json:"priority"`
	Dependencies []string       `json:"dependencies,omitempty"` // IDs of tasks that must run first
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// QualityAssessment is the externally supplied quality judgement for an AI
// response. Score is normalized to [0,1].
type QualityAssessment struct {
	Score   float64  `json:"score"   validate:"min=0,max=1"`
	Issues  []string `json:"issues,omitempty"`
	Summary string   `json:"summary,omitempty"`
}
