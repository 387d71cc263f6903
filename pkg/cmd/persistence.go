package cmd

import (
	"github.com/autofin/autofin/pkg/persistence"
	"github.com/autofin/autofin/pkg/persistence/memory"
)

// NewTaskRepository creates the task store. Only the in-memory backend ships
// today; external stores plug in behind the same interface.
func NewTaskRepository() persistence.TaskRepository {
	return memory.NewTaskRepository()
}

// NewPreferenceRepository creates the preference store.
func NewPreferenceRepository() persistence.PreferenceRepository {
	return memory.NewPreferenceRepository()
}
