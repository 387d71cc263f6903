package automation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/persistence"
	"github.com/autofin/autofin/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPrefs wraps the memory repository and counts backing-store reads.
type countingPrefs struct {
	*memory.PreferenceRepository

	userReads    atomic.Int64
	projectReads atomic.Int64
	failUsers    bool
}

func (c *countingPrefs) UserPreference(ctx context.Context, userID string) (*models.AutomationPreference, error) {
	c.userReads.Add(1)

	if c.failUsers {
		return nil, errors.New("backing store unavailable")
	}

	return c.PreferenceRepository.UserPreference(ctx, userID)
}

func (c *countingPrefs) ProjectSetting(ctx context.Context, projectID string) (*models.AutomationPreference, error) {
	c.projectReads.Add(1)

	return c.PreferenceRepository.ProjectSetting(ctx, projectID)
}

func newTestEngine(t *testing.T, prefs persistence.PreferenceRepository, rules RuleEngine, config Config) *Engine {
	t.Helper()

	engine, err := NewEngine(prefs, rules, nil, config, nil)
	require.NoError(t, err)

	return engine
}

func TestNewEngineRequiresRepository(t *testing.T) {
	_, err := NewEngine(nil, nil, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingPreferenceRepository)
}

func TestUserPreferenceWinsOverEverything(t *testing.T) {
	prefs := memory.NewPreferenceRepository()
	require.NoError(t, prefs.SaveUserPreference(t.Context(), &models.AutomationPreference{
		OwnerID: "u1", Scope: models.ScopeUser, Level: models.AutomationFullAuto,
	}))
	require.NoError(t, prefs.SaveProjectSetting(t.Context(), &models.AutomationPreference{
		OwnerID: "p1", Scope: models.ScopeProject, Level: models.AutomationManual,
	}))

	engine := newTestEngine(t, prefs, nil, Config{})

	// Deployment tasks would be manual by type policy and the project says
	// manual too, but the user preference takes precedence over both.
	task := models.Task{ID: "t1", Type: models.TaskTypeDeployment, ProjectID: "p1", UserID: "u1"}
	level := engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"})

	assert.Equal(t, models.AutomationFullAuto, level)
}

func TestProjectSettingBeatsTaskTypePolicy(t *testing.T) {
	prefs := memory.NewPreferenceRepository()
	require.NoError(t, prefs.SaveProjectSetting(t.Context(), &models.AutomationPreference{
		OwnerID: "p1", Scope: models.ScopeProject, Level: models.AutomationManual,
	}))

	engine := newTestEngine(t, prefs, nil, Config{})

	task := models.Task{ID: "t1", Type: models.TaskTypeAnalysis, ProjectID: "p1"}
	assert.Equal(t, models.AutomationManual, engine.DetermineLevel(t.Context(), task, DecisionContext{}))
}

func TestTaskTypePolicy(t *testing.T) {
	engine := newTestEngine(t, memory.NewPreferenceRepository(), nil, Config{})

	tests := []struct {
		taskType models.TaskType
		want     models.AutomationLevel
	}{
		{taskType: models.TaskTypeDeployment, want: models.AutomationManual},
		{taskType: models.TaskTypeSecurity, want: models.AutomationAssisted},
		{taskType: models.TaskTypeAnalysis, want: models.AutomationFullAuto},
		{taskType: models.TaskTypeBugfix, want: models.AutomationSemiAuto},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			task := models.Task{ID: "t", Type: tt.taskType}
			assert.Equal(t, tt.want, engine.DetermineLevel(t.Context(), task, DecisionContext{}))
		})
	}
}

func TestConfidenceAuthorizesFullAuto(t *testing.T) {
	engine := newTestEngine(t, memory.NewPreferenceRepository(), nil, Config{ConfidenceThreshold: 0.8})

	// An unknown task type falls past the policy table to the confidence
	// source.
	task := models.Task{ID: "t1", Type: models.TaskType("custom")}

	high := 0.9
	assert.Equal(t, models.AutomationFullAuto,
		engine.DetermineLevel(t.Context(), task, DecisionContext{Confidence: &high}))

	low := 0.5
	assert.Equal(t, models.AutomationAssisted,
		engine.DetermineLevel(t.Context(), task, DecisionContext{Confidence: &low}),
		"below-threshold confidence falls through to the default")
}

func TestRuleEngineConsultedBeforeDefault(t *testing.T) {
	rules := NewStaticRuleEngine(
		models.AutomationRule{ID: "r1", TaskType: models.TaskType("custom"), Level: models.AutomationManual, Enabled: true},
	)

	engine := newTestEngine(t, memory.NewPreferenceRepository(), rules, Config{})

	task := models.Task{ID: "t1", Type: models.TaskType("custom")}
	assert.Equal(t, models.AutomationManual, engine.DetermineLevel(t.Context(), task, DecisionContext{}))
}

func TestCascadeDegradesOnSourceError(t *testing.T) {
	prefs := &countingPrefs{PreferenceRepository: memory.NewPreferenceRepository(), failUsers: true}

	engine := newTestEngine(t, prefs, nil, Config{})

	// The user source errors, the task has no project and an unknown type,
	// there is no confidence and no rule engine: the default applies and no
	// error escapes.
	task := models.Task{ID: "t1", Type: models.TaskType("custom"), UserID: "u1"}
	assert.Equal(t, models.AutomationAssisted, engine.DetermineLevel(t.Context(), task, DecisionContext{}))
}

func TestPreferenceExceptionOverridesLevel(t *testing.T) {
	prefs := memory.NewPreferenceRepository()
	require.NoError(t, prefs.SaveUserPreference(t.Context(), &models.AutomationPreference{
		OwnerID: "u1",
		Scope:   models.ScopeUser,
		Level:   models.AutomationFullAuto,
		Exceptions: []models.AutomationException{
			{TaskType: models.TaskTypeDeployment, Level: models.AutomationManual, Reason: "prod changes need a human"},
		},
	}))

	engine := newTestEngine(t, prefs, nil, Config{})

	deploy := models.Task{ID: "t1", Type: models.TaskTypeDeployment, UserID: "u1"}
	assert.Equal(t, models.AutomationManual, engine.DetermineLevel(t.Context(), deploy, DecisionContext{UserID: "u1"}))

	feature := models.Task{ID: "t2", Type: models.TaskTypeFeature, UserID: "u1"}
	assert.Equal(t, models.AutomationFullAuto, engine.DetermineLevel(t.Context(), feature, DecisionContext{UserID: "u1"}))
}

func TestCacheHitWithinTTL(t *testing.T) {
	prefs := &countingPrefs{PreferenceRepository: memory.NewPreferenceRepository()}
	require.NoError(t, prefs.SaveUserPreference(t.Context(), &models.AutomationPreference{
		OwnerID: "u1", Scope: models.ScopeUser, Level: models.AutomationSemiAuto,
	}))

	engine := newTestEngine(t, prefs, nil, Config{UserTTL: time.Minute})

	task := models.Task{ID: "t1", Type: models.TaskTypeFeature, UserID: "u1"}

	engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"})
	engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"})

	assert.Equal(t, int64(1), prefs.userReads.Load(), "second lookup within the TTL must be a cache hit")
}

func TestCacheExpiry(t *testing.T) {
	prefs := &countingPrefs{PreferenceRepository: memory.NewPreferenceRepository()}
	require.NoError(t, prefs.SaveUserPreference(t.Context(), &models.AutomationPreference{
		OwnerID: "u1", Scope: models.ScopeUser, Level: models.AutomationSemiAuto,
	}))

	engine := newTestEngine(t, prefs, nil, Config{UserTTL: time.Nanosecond})

	task := models.Task{ID: "t1", Type: models.TaskTypeFeature, UserID: "u1"}

	engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"})
	time.Sleep(time.Millisecond)
	engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"})

	assert.Equal(t, int64(2), prefs.userReads.Load(), "expired entry must refetch from the backing store")
}

func TestWriteThroughUpdatesCacheAndStore(t *testing.T) {
	prefs := &countingPrefs{PreferenceRepository: memory.NewPreferenceRepository()}
	engine := newTestEngine(t, prefs, nil, Config{})

	pref := &models.AutomationPreference{OwnerID: "u1", Scope: models.ScopeUser, Level: models.AutomationManual}
	require.NoError(t, engine.SetUserPreference(t.Context(), pref))

	// The level is mirrored into the preference's own metadata.
	assert.Equal(t, "manual", pref.Metadata["automation_level"])

	// The cascade is served from the freshly written cache entry, so the
	// backing store sees no read at all.
	task := models.Task{ID: "t1", Type: models.TaskTypeFeature, UserID: "u1"}
	assert.Equal(t, models.AutomationManual, engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"}))
	assert.Equal(t, int64(0), prefs.userReads.Load())

	// Invalidation forces the next lookup back to the store.
	require.NoError(t, engine.InvalidateUser(t.Context(), "u1"))
	engine.DetermineLevel(t.Context(), task, DecisionContext{UserID: "u1"})
	assert.Equal(t, int64(1), prefs.userReads.Load())
}

func TestDerivedQueries(t *testing.T) {
	prefs := memory.NewPreferenceRepository()
	require.NoError(t, prefs.SaveUserPreference(t.Context(), &models.AutomationPreference{
		OwnerID: "u1", Scope: models.ScopeUser, Level: models.AutomationFullAuto,
	}))

	engine := newTestEngine(t, prefs, nil, Config{})

	task := models.Task{ID: "t1", Type: models.TaskTypeFeature, UserID: "u1"}
	dctx := DecisionContext{UserID: "u1"}

	assert.False(t, engine.RequiresConfirmation(t.Context(), task, dctx))
	assert.False(t, engine.RequiresHumanReview(t.Context(), task, dctx))
	assert.True(t, engine.IsFullyAutomated(t.Context(), task, dctx))
	assert.InDelta(t, 0.6, engine.ConfidenceThreshold(t.Context(), task, dctx), 1e-9)

	manual := models.Task{ID: "t2", Type: models.TaskTypeDeployment}
	assert.True(t, engine.RequiresConfirmation(t.Context(), manual, DecisionContext{}))
	assert.True(t, engine.RequiresHumanReview(t.Context(), manual, DecisionContext{}))
	assert.False(t, engine.IsFullyAutomated(t.Context(), manual, DecisionContext{}))
}
