package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/autofin/autofin/pkg/automation"
	"github.com/autofin/autofin/pkg/eventbus"
	"github.com/autofin/autofin/pkg/events"
	"github.com/autofin/autofin/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Preference manages user and project automation preferences. Writes go
// through the automation engine so its TTL cache stays coherent; every write
// and delete emits a preference.updated event.
type Preference struct {
	engine    *automation.Engine
	validator *validator.Validate
	events    eventbus.EventPublisher
	logger    *slog.Logger
}

// NewPreference creates a new preference service. The event publisher may be
// nil, in which case updates are silent.
func NewPreference(engine *automation.Engine, publisher eventbus.EventPublisher, logger *slog.Logger) *Preference {
	if logger == nil {
		logger = slog.Default()
	}

	return &Preference{
		engine:    engine,
		validator: validator.New(),
		events:    publisher,
		logger:    logger.With("module", "preference_service"),
	}
}

// GetUserPreference retrieves the stored preference for a user.
func (p *Preference) GetUserPreference(ctx context.Context, userID string) (*models.AutomationPreference, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyOwnerID
	}

	return p.engine.UserPreference(ctx, userID)
}

// SetUserPreference validates and stores a user preference.
func (p *Preference) SetUserPreference(ctx context.Context, pref *models.AutomationPreference) (*models.AutomationPreference, error) {
	if err := p.validate("SetUserPreference", pref, models.ScopeUser); err != nil {
		return nil, err
	}

	pref.UpdatedAt = time.Now().UTC()

	if err := p.engine.SetUserPreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to save user preference: %w", err)
	}

	p.emitUpdated(ctx, pref)

	return pref, nil
}

// DeleteUserPreference removes a user preference and drops its cache entry.
func (p *Preference) DeleteUserPreference(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyOwnerID
	}

	if err := p.engine.DeleteUserPreference(ctx, userID); err != nil {
		return err
	}

	p.emitUpdated(ctx, &models.AutomationPreference{OwnerID: userID, Scope: models.ScopeUser})

	return nil
}

// GetProjectSetting retrieves the stored setting for a project.
func (p *Preference) GetProjectSetting(ctx context.Context, projectID string) (*models.AutomationPreference, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyOwnerID
	}

	return p.engine.ProjectSetting(ctx, projectID)
}

// SetProjectSetting validates and stores a project setting.
func (p *Preference) SetProjectSetting(ctx context.Context, pref *models.AutomationPreference) (*models.AutomationPreference, error) {
	if err := p.validate("SetProjectSetting", pref, models.ScopeProject); err != nil {
		return nil, err
	}

	pref.UpdatedAt = time.Now().UTC()

	if err := p.engine.SetProjectSetting(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to save project setting: %w", err)
	}

	p.emitUpdated(ctx, pref)

	return pref, nil
}

// DeleteProjectSetting removes a project setting and drops its cache entry.
func (p *Preference) DeleteProjectSetting(ctx context.Context, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return ErrEmptyOwnerID
	}

	if err := p.engine.DeleteProjectSetting(ctx, projectID); err != nil {
		return err
	}

	p.emitUpdated(ctx, &models.AutomationPreference{OwnerID: projectID, Scope: models.ScopeProject})

	return nil
}

func (p *Preference) validate(op string, pref *models.AutomationPreference, scope models.PreferenceScope) error {
	if pref == nil {
		return ErrPreferenceNil
	}

	if pref.Scope == "" {
		pref.Scope = scope
	}

	if pref.Scope != scope {
		return NewValidationError(op, "INVALID_SCOPE",
			fmt.Sprintf("expected scope %q, got %q", scope, pref.Scope), ErrInvalidScope)
	}

	if strings.TrimSpace(pref.OwnerID) == "" {
		return ErrEmptyOwnerID
	}

	if _, err := models.ParseAutomationLevel(string(pref.Level)); err != nil {
		return NewValidationError(op, "INVALID_LEVEL",
			fmt.Sprintf("invalid automation level %q", pref.Level), ErrInvalidLevel)
	}

	if pref.ConfidenceThreshold < 0 || pref.ConfidenceThreshold > 1 {
		return NewValidationError(op, "INVALID_THRESHOLD",
			fmt.Sprintf("confidence threshold %v out of range", pref.ConfidenceThreshold), ErrInvalidThreshold)
	}

	if err := p.validator.Struct(pref); err != nil {
		return NewValidationError(op, "INVALID_PREFERENCE", err.Error(), ErrInvalidRequest)
	}

	return nil
}

func (p *Preference) emitUpdated(ctx context.Context, pref *models.AutomationPreference) {
	if p.events == nil {
		return
	}

	event := events.PreferenceUpdated{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.PreferenceUpdatedEvent,
			Timestamp: time.Now(),
		},
		OwnerID: pref.OwnerID,
		Scope:   pref.Scope,
		Level:   pref.Level,
	}

	if err := p.events.Publish(ctx, pref.OwnerID, event); err != nil {
		p.logger.WarnContext(ctx, "failed to publish preference update",
			"owner_id", pref.OwnerID, "scope", pref.Scope, "error", err)
	}
}
