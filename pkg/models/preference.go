package models

import "time"

// PreferenceScope distinguishes user-scoped preferences from project-scoped
// settings. Both share the same shape.
type PreferenceScope string

const (
	ScopeUser    PreferenceScope = "user"
	ScopeProject PreferenceScope = "project"
)

// AutomationPreference is a stored automation preference for a user or a
// project. The external repository is the source of truth; the decision
// engine caches these with a TTL.
type AutomationPreference struct {
	OwnerID             string                `json:"owner_id"             validate:"required"`
	Scope               PreferenceScope      `json:"scope"                validate:"required,oneof=user project"`
	Level               AutomationLevel      `json:"level"                validate:"required,oneof=manual assisted semi_auto full_auto"`
	ConfidenceThreshold float64              `json:"confidence_threshold" validate:"min=0,max=1"`
	Rules               []AutomationRule     `json:"rules,omitempty"`
	Exceptions          []AutomationException `json:"exceptions,omitempty"`
	Metadata            map[string]any        `json:"metadata,omitempty"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// AutomationRule maps a task predicate to an automation level. Rules are
// evaluated in order; the first match wins.
type AutomationRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TaskType    TaskType        `json:"task_type,omitempty"`    // empty matches any type
	MinPriority int             `json:"min_priority,omitempty"`
	MaxPriority int             `json:"max_priority,omitempty"` // 0 means unbounded
	Level       AutomationLevel `json:"level"                   validate:"required"`
	Enabled     bool            `json:"enabled"`
}

// Matches reports whether the rule applies to the task.
func (r AutomationRule) Matches(task Task) bool {
	if !r.Enabled {
		return false
	}

	if r.TaskType != "" && r.TaskType != task.Type {
		return false
	}

	if task.Priority < r.MinPriority {
		return false
	}

	if r.MaxPriority > 0 && task.Priority > r.MaxPriority {
		return false
	}

	return true
}

// AutomationException pins a task type to a level regardless of the owner's
// general preference.
type AutomationException struct {
	TaskType TaskType        `json:"task_type" validate:"required"`
	Level    AutomationLevel `json:"level"     validate:"required"`
	Reason   string          `json:"reason,omitempty"`
}
