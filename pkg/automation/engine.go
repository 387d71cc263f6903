// Package automation decides how much of a task's completion loop may run
// without a human: a strict cascade over preference sources with
// logged-and-continue degradation, fronted by TTL caches.
package automation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/persistence"
)

// Defaults.
const (
	DefaultConfidenceThreshold = 0.8
	DefaultUserTTL             = 5 * time.Minute
	DefaultProjectTTL          = 10 * time.Minute
)

// ErrMissingPreferenceRepository fails engine construction fast when the
// backing store was not supplied.
var ErrMissingPreferenceRepository = errors.New("automation engine requires a preference repository")

// DecisionContext carries the per-call inputs to the cascade that do not live
// on the task itself.
type DecisionContext struct {
	UserID     string
	ProjectID  string
	Confidence *float64 // externally computed AI confidence, nil when unknown
}

// Config tunes the engine.
type Config struct {
	DefaultLevel        models.AutomationLevel
	ConfidenceThreshold float64
	UserTTL             time.Duration
	ProjectTTL          time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultLevel == "" {
		c.DefaultLevel = models.AutomationAssisted
	}

	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	if c.UserTTL == 0 {
		c.UserTTL = DefaultUserTTL
	}

	if c.ProjectTTL == 0 {
		c.ProjectTTL = DefaultProjectTTL
	}
}

// taskTypePolicies is the static task-type fallback used when neither user
// nor project expressed a preference.
var taskTypePolicies = map[models.TaskType]models.AutomationLevel{
	models.TaskTypeDeployment: models.AutomationManual,
	models.TaskTypeSecurity:   models.AutomationAssisted,
	models.TaskTypeAnalysis:   models.AutomationFullAuto,
	models.TaskTypeDocs:       models.AutomationFullAuto,
	models.TaskTypeFeature:    models.AutomationSemiAuto,
	models.TaskTypeBugfix:     models.AutomationSemiAuto,
	models.TaskTypeRefactor:   models.AutomationSemiAuto,
	models.TaskTypeTest:       models.AutomationSemiAuto,
	models.TaskTypeGeneric:    models.AutomationAssisted,
}

// cascadeSource is one step of the decision cascade. ok=false means the
// source has nothing to say; an error is logged and skipped, never surfaced.
type cascadeSource struct {
	name   string
	lookup func(ctx context.Context, task models.Task, dctx DecisionContext) (models.AutomationLevel, bool, error)
}

// Engine runs the automation-level decision cascade.
type Engine struct {
	prefs   persistence.PreferenceRepository
	rules   RuleEngine
	cache   Cache
	config  Config
	logger  *slog.Logger
	cascade []cascadeSource
}

// NewEngine builds an engine. The preference repository is required; rule
// engine and cache are optional (a nil cache gets an in-process MemoryCache).
func NewEngine(prefs persistence.PreferenceRepository, rules RuleEngine, cache Cache, config Config, logger *slog.Logger) (*Engine, error) {
	if prefs == nil {
		return nil, ErrMissingPreferenceRepository
	}

	if cache == nil {
		cache = NewMemoryCache()
	}

	if logger == nil {
		logger = slog.Default()
	}

	config.applyDefaults()

	e := &Engine{
		prefs:  prefs,
		rules:  rules,
		cache:  cache,
		config: config,
		logger: logger.With("module", "automation_engine"),
	}

	e.cascade = []cascadeSource{
		{name: "user_preference", lookup: e.fromUserPreference},
		{name: "project_setting", lookup: e.fromProjectSetting},
		{name: "task_type_policy", lookup: e.fromTaskTypePolicy},
		{name: "ai_confidence", lookup: e.fromConfidence},
		{name: "rule_engine", lookup: e.fromRuleEngine},
	}

	return e, nil
}

// DetermineLevel walks the cascade in order and returns the first hit. It
// never returns an error: a failing source is logged and skipped, and when
// every source degrades the configured default level applies.
func (e *Engine) DetermineLevel(ctx context.Context, task models.Task, dctx DecisionContext) models.AutomationLevel {
	for _, source := range e.cascade {
		level, ok, err := source.lookup(ctx, task, dctx)
		if err != nil {
			e.logger.WarnContext(ctx, "automation source degraded, trying next",
				"source", source.name, "task_id", task.ID, "error", err)

			continue
		}

		if ok {
			return level
		}
	}

	return e.config.DefaultLevel
}

// RequiresConfirmation reports whether the decided level needs an explicit
// confirmation step. Conservative on internal failure: confirmation required.
func (e *Engine) RequiresConfirmation(ctx context.Context, task models.Task, dctx DecisionContext) (required bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "confirmation query panicked, requiring confirmation", "panic", r)

			required = true
		}
	}()

	return models.PolicyFor(e.DetermineLevel(ctx, task, dctx)).RequiresConfirmation
}

// RequiresHumanReview reports whether a human must review the completed task.
func (e *Engine) RequiresHumanReview(ctx context.Context, task models.Task, dctx DecisionContext) (required bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "review query panicked, requiring review", "panic", r)

			required = true
		}
	}()

	return models.PolicyFor(e.DetermineLevel(ctx, task, dctx)).RequiresHumanReview
}

// IsFullyAutomated reports whether the task may finish with no human in the
// loop. Conservative on internal failure: not automated.
func (e *Engine) IsFullyAutomated(ctx context.Context, task models.Task, dctx DecisionContext) (automated bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "automation query panicked, disabling automation", "panic", r)

			automated = false
		}
	}()

	return models.PolicyFor(e.DetermineLevel(ctx, task, dctx)).FullyAutomated
}

// ConfidenceThreshold returns the completion confidence bar implied by the
// decided level.
func (e *Engine) ConfidenceThreshold(ctx context.Context, task models.Task, dctx DecisionContext) float64 {
	return models.PolicyFor(e.DetermineLevel(ctx, task, dctx)).ConfidenceThreshold
}

// SetUserPreference writes through to the repository, refreshes the cache and
// mirrors the level into the preference's own metadata as a denormalized
// fallback read path.
func (e *Engine) SetUserPreference(ctx context.Context, pref *models.AutomationPreference) error {
	mirrorLevel(pref)

	if err := e.prefs.SaveUserPreference(ctx, pref); err != nil {
		return err
	}

	return e.cache.Set(ctx, userCacheKey(pref.OwnerID), pref, e.config.UserTTL)
}

// SetProjectSetting is the project-scoped write-through twin of
// SetUserPreference.
func (e *Engine) SetProjectSetting(ctx context.Context, pref *models.AutomationPreference) error {
	mirrorLevel(pref)

	if err := e.prefs.SaveProjectSetting(ctx, pref); err != nil {
		return err
	}

	return e.cache.Set(ctx, projectCacheKey(pref.OwnerID), pref, e.config.ProjectTTL)
}

// UserPreference reads the stored user preference through the cache.
func (e *Engine) UserPreference(ctx context.Context, userID string) (*models.AutomationPreference, error) {
	return e.cachedLookup(ctx, userCacheKey(userID), e.config.UserTTL, func() (*models.AutomationPreference, error) {
		return e.prefs.UserPreference(ctx, userID)
	})
}

// ProjectSetting reads the stored project setting through the cache.
func (e *Engine) ProjectSetting(ctx context.Context, projectID string) (*models.AutomationPreference, error) {
	return e.cachedLookup(ctx, projectCacheKey(projectID), e.config.ProjectTTL, func() (*models.AutomationPreference, error) {
		return e.prefs.ProjectSetting(ctx, projectID)
	})
}

// DeleteUserPreference removes the stored user preference and its cache entry.
func (e *Engine) DeleteUserPreference(ctx context.Context, userID string) error {
	if err := e.prefs.DeleteUserPreference(ctx, userID); err != nil {
		return err
	}

	return e.InvalidateUser(ctx, userID)
}

// DeleteProjectSetting removes the stored project setting and its cache entry.
func (e *Engine) DeleteProjectSetting(ctx context.Context, projectID string) error {
	if err := e.prefs.DeleteProjectSetting(ctx, projectID); err != nil {
		return err
	}

	return e.InvalidateProject(ctx, projectID)
}

// InvalidateUser drops the cached user preference.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	return e.cache.Delete(ctx, userCacheKey(userID))
}

// InvalidateProject drops the cached project setting.
func (e *Engine) InvalidateProject(ctx context.Context, projectID string) error {
	return e.cache.Delete(ctx, projectCacheKey(projectID))
}

func (e *Engine) fromUserPreference(ctx context.Context, task models.Task, dctx DecisionContext) (models.AutomationLevel, bool, error) {
	userID := dctx.UserID
	if userID == "" {
		userID = task.UserID
	}

	if userID == "" {
		return "", false, nil
	}

	pref, err := e.cachedLookup(ctx, userCacheKey(userID), e.config.UserTTL, func() (*models.AutomationPreference, error) {
		return e.prefs.UserPreference(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, persistence.ErrPreferenceNotFound) {
			return "", false, nil
		}

		return "", false, err
	}

	return resolvePreference(pref, task), true, nil
}

func (e *Engine) fromProjectSetting(ctx context.Context, task models.Task, dctx DecisionContext) (models.AutomationLevel, bool, error) {
	projectID := task.ProjectID
	if projectID == "" {
		projectID = dctx.ProjectID
	}

	if projectID == "" {
		return "", false, nil
	}

	pref, err := e.cachedLookup(ctx, projectCacheKey(projectID), e.config.ProjectTTL, func() (*models.AutomationPreference, error) {
		return e.prefs.ProjectSetting(ctx, projectID)
	})
	if err != nil {
		if errors.Is(err, persistence.ErrPreferenceNotFound) {
			return "", false, nil
		}

		return "", false, err
	}

	return resolvePreference(pref, task), true, nil
}

func (e *Engine) fromTaskTypePolicy(_ context.Context, task models.Task, _ DecisionContext) (models.AutomationLevel, bool, error) {
	level, ok := taskTypePolicies[task.Type]

	return level, ok, nil
}

func (e *Engine) fromConfidence(_ context.Context, _ models.Task, dctx DecisionContext) (models.AutomationLevel, bool, error) {
	if dctx.Confidence != nil && *dctx.Confidence >= e.config.ConfidenceThreshold {
		return models.AutomationFullAuto, true, nil
	}

	return "", false, nil
}

func (e *Engine) fromRuleEngine(ctx context.Context, task models.Task, dctx DecisionContext) (models.AutomationLevel, bool, error) {
	if e.rules == nil {
		return "", false, nil
	}

	return e.rules.EvaluateRules(ctx, task, dctx)
}

// cachedLookup serves from cache within the TTL window, otherwise hits the
// repository and refreshes the cache.
func (e *Engine) cachedLookup(ctx context.Context, key string, ttl time.Duration, fetch func() (*models.AutomationPreference, error)) (*models.AutomationPreference, error) {
	if pref, ok := e.cache.Get(ctx, key); ok {
		return pref, nil
	}

	pref, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, pref, ttl); err != nil {
		e.logger.WarnContext(ctx, "failed to refresh preference cache", "key", key, "error", err)
	}

	return pref, nil
}

// resolvePreference applies the preference's task-type exceptions before
// falling back to its general level.
func resolvePreference(pref *models.AutomationPreference, task models.Task) models.AutomationLevel {
	for _, exception := range pref.Exceptions {
		if exception.TaskType == task.Type {
			return exception.Level
		}
	}

	return pref.Level
}

func mirrorLevel(pref *models.AutomationPreference) {
	if pref.Metadata == nil {
		pref.Metadata = map[string]any{}
	}

	pref.Metadata["automation_level"] = string(pref.Level)
}

func userCacheKey(id string) string    { return "user:" + id }
func projectCacheKey(id string) string { return "project:" + id }
