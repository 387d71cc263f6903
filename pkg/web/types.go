// Package web provides HTTP request and response types for the pipeline API.
package web

import (
	"encoding/json"

	"github.com/autofin/autofin/pkg/models"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StartRunRequest represents the request body for starting a pipeline run.
// Either a list of prepared tasks or a raw batch payload must be present;
// the payload goes through schema validation before anything runs.
type StartRunRequest struct {
	Tasks   []models.Task   `json:"tasks,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
}

// SetPreferenceRequest represents the request body for storing a user
// preference or project setting. The owner and scope come from the route.
type SetPreferenceRequest struct {
	Level               string                       `json:"level"                validate:"required"`
	ConfidenceThreshold float64                      `json:"confidence_threshold" validate:"min=0,max=1"`
	Rules               []models.AutomationRule      `json:"rules,omitempty"`
	Exceptions          []models.AutomationException `json:"exceptions,omitempty"`
	Metadata            map[string]any               `json:"metadata,omitempty"`
}

func (r SetPreferenceRequest) toPreference(ownerID string, scope models.PreferenceScope) *models.AutomationPreference {
	return &models.AutomationPreference{
		OwnerID:             ownerID,
		Scope:               scope,
		Level:               models.AutomationLevel(r.Level),
		ConfidenceThreshold: r.ConfidenceThreshold,
		Rules:               r.Rules,
		Exceptions:          r.Exceptions,
		Metadata:            r.Metadata,
	}
}
