// Package persistence provides the storage abstraction layer for tasks and
// automation preferences. The orchestrator core only ever sees these
// interfaces; implementations live in subpackages.
package persistence

import (
	"context"
	"errors"

	"github.com/autofin/autofin/pkg/models"
)

var (
	// ErrTaskNotFound is returned when a task lookup misses.
	ErrTaskNotFound = errors.New("task not found")
	// ErrPreferenceNotFound is returned when no preference or setting is
	// stored for the requested owner.
	ErrPreferenceNotFound = errors.New("automation preference not found")
)

// TaskRepository is the external task store. Tasks are owned elsewhere; the
// core reads them and patches status and metadata.
type TaskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	FindByProjectIDAndStatus(ctx context.Context, projectID string, status models.TaskStatus) ([]*models.Task, error)
	Update(ctx context.Context, id string, patch map[string]any) error
	UpdateMetadata(ctx context.Context, id string, patch map[string]any) error
}

// PreferenceRepository is the source of truth for user preferences and
// project settings. The decision engine fronts it with a TTL cache.
type PreferenceRepository interface {
	UserPreference(ctx context.Context, userID string) (*models.AutomationPreference, error)
	ProjectSetting(ctx context.Context, projectID string) (*models.AutomationPreference, error)
	SaveUserPreference(ctx context.Context, pref *models.AutomationPreference) error
	SaveProjectSetting(ctx context.Context, pref *models.AutomationPreference) error
	DeleteUserPreference(ctx context.Context, userID string) error
	DeleteProjectSetting(ctx context.Context, projectID string) error
}
