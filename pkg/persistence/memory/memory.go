// Package memory provides mutex-guarded in-memory implementations of the
// persistence interfaces, used by tests, the worker binary and as the default
// backend when no external store is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/persistence"
)

// TaskRepository keeps tasks in a map plus an insertion-order slice so
// project listings are stable.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
	order []string
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: map[string]*models.Task{}}
}

// Seed inserts tasks, keeping insertion order. Existing IDs are overwritten
// in place without duplicating the order entry.
func (r *TaskRepository) Seed(tasks ...*models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range tasks {
		copied := *task

		if _, exists := r.tasks[task.ID]; !exists {
			r.order = append(r.order, task.ID)
		}

		r.tasks[task.ID] = &copied
	}
}

func (r *TaskRepository) FindByID(_ context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTaskNotFound, id)
	}

	copied := *task

	return &copied, nil
}

func (r *TaskRepository) FindByProjectIDAndStatus(_ context.Context, projectID string, status models.TaskStatus) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Task

	for _, id := range r.order {
		task := r.tasks[id]
		if task.ProjectID != projectID || task.Status != status {
			continue
		}

		copied := *task
		out = append(out, &copied)
	}

	return out, nil
}

// Update patches known task fields. Unknown keys are ignored rather than
// rejected, mirroring a partial-document update.
func (r *TaskRepository) Update(_ context.Context, id string, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", persistence.ErrTaskNotFound, id)
	}

	for key, value := range patch {
		switch key {
		case "status":
			switch v := value.(type) {
			case models.TaskStatus:
				task.Status = v
			case string:
				task.Status = models.TaskStatus(v)
			}
		case "title":
			if v, ok := value.(string); ok {
				task.Title = v
			}
		case "description":
			if v, ok := value.(string); ok {
				task.Description = v
			}
		case "priority":
			if v, ok := value.(int); ok {
				task.Priority = v
			}
		}
	}

	task.UpdatedAt = time.Now()

	return nil
}

func (r *TaskRepository) UpdateMetadata(_ context.Context, id string, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", persistence.ErrTaskNotFound, id)
	}

	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}

	for key, value := range patch {
		task.Metadata[key] = value
	}

	task.UpdatedAt = time.Now()

	return nil
}

// PreferenceRepository keeps preferences and settings in memory.
type PreferenceRepository struct {
	mu       sync.RWMutex
	users    map[string]*models.AutomationPreference
	projects map[string]*models.AutomationPreference
}

func NewPreferenceRepository() *PreferenceRepository {
	return &PreferenceRepository{
		users:    map[string]*models.AutomationPreference{},
		projects: map[string]*models.AutomationPreference{},
	}
}

func (r *PreferenceRepository) UserPreference(_ context.Context, userID string) (*models.AutomationPreference, error) {
	return r.get(r.users, userID)
}

func (r *PreferenceRepository) ProjectSetting(_ context.Context, projectID string) (*models.AutomationPreference, error) {
	return r.get(r.projects, projectID)
}

func (r *PreferenceRepository) SaveUserPreference(_ context.Context, pref *models.AutomationPreference) error {
	return r.set(r.users, pref)
}

func (r *PreferenceRepository) SaveProjectSetting(_ context.Context, pref *models.AutomationPreference) error {
	return r.set(r.projects, pref)
}

func (r *PreferenceRepository) DeleteUserPreference(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, userID)

	return nil
}

func (r *PreferenceRepository) DeleteProjectSetting(_ context.Context, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.projects, projectID)

	return nil
}

func (r *PreferenceRepository) get(m map[string]*models.AutomationPreference, id string) (*models.AutomationPreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pref, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrPreferenceNotFound, id)
	}

	copied := *pref

	return &copied, nil
}

func (r *PreferenceRepository) set(m map[string]*models.AutomationPreference, pref *models.AutomationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *pref
	copied.UpdatedAt = time.Now()
	m[pref.OwnerID] = &copied

	return nil
}
