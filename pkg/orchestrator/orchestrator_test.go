package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/autofin/autofin/pkg/automation"
	"github.com/autofin/autofin/pkg/confidence"
	"github.com/autofin/autofin/pkg/eventbus"
	"github.com/autofin/autofin/pkg/events"
	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/persistence/memory"
	"github.com/autofin/autofin/pkg/response"
	"github.com/autofin/autofin/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completeResponse scores above the default completion threshold for a
// confirmed feature task with a 0.9 quality assessment.
const completeResponse = "I implemented the endpoint, added the handler and created the unit test suite " +
	"with full error handling for the failure paths. The change is wired into the router and " +
	"covered end to end, all assertions pass successfully.\n" +
	"```go\nfunc Serve() error {\n\treturn nil\n}\n```\n" +
	"Done."

// recordingPublisher captures emitted events; optionally fails every publish.
type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return errors.New("broker unavailable")
	}

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) typeCounts() map[events.EventType]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := map[events.EventType]int{}
	for _, event := range p.events {
		counts[event.GetType()]++
	}

	return counts
}

// fakeConfirmer answers per task ID; unknown tasks are confirmed.
type fakeConfirmer struct {
	results map[string]ConfirmationResult
	errs    map[string]error
	onCall  func(taskID string)
}

func (f *fakeConfirmer) Confirm(_ context.Context, task models.Task, _ string) (ConfirmationResult, error) {
	if f.onCall != nil {
		f.onCall(task.ID)
	}

	if err, ok := f.errs[task.ID]; ok {
		return ConfirmationResult{}, err
	}

	if result, ok := f.results[task.ID]; ok {
		return result, nil
	}

	return ConfirmationResult{Confirmed: true}, nil
}

type testFixture struct {
	orchestrator *Orchestrator
	tasks        *memory.TaskRepository
	publisher    *recordingPublisher
	confirmer    *fakeConfirmer
}

func newFixture(t *testing.T, source response.Source, options Options) *testFixture {
	t.Helper()

	tasks := memory.NewTaskRepository()
	publisher := &recordingPublisher{}
	confirmer := &fakeConfirmer{results: map[string]ConfirmationResult{}, errs: map[string]error{}}

	engine, err := automation.NewEngine(memory.NewPreferenceRepository(), nil, nil, automation.Config{}, nil)
	require.NoError(t, err)

	detector, err := confidence.NewDefaultDetector()
	require.NoError(t, err)

	quality := QualityAssessorFunc(func(_ context.Context, _ models.Task, _ string) (*models.QualityAssessment, error) {
		return &models.QualityAssessment{Score: 0.9}, nil
	})

	orch, err := New(Dependencies{
		Tasks:     tasks,
		Responses: source,
		Engine:    engine,
		Detector:  detector,
		Confirmer: confirmer,
		Quality:   quality,
		Events:    publisher,
	}, options)
	require.NoError(t, err)

	return &testFixture{orchestrator: orch, tasks: tasks, publisher: publisher, confirmer: confirmer}
}

func featureTask(id string) models.Task {
	return models.Task{ID: id, Type: models.TaskTypeFeature, Title: "task " + id, ProjectID: "p1"}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{}, DefaultOptions())
	require.Error(t, err)

	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.True(t, errors.Is(err, ErrMissingDependency))
}

func TestRunCompletesConfirmedTasks(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())
	fixture.tasks.Seed(&models.Task{ID: "t1", Type: models.TaskTypeFeature, Status: models.TaskStatusPending})

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: []models.Task{featureTask("t1")}})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SessionID)
	require.Len(t, result.Completed, 1)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 1, result.Metadata.CompletedCount)
	assert.Equal(t, "all 1 tasks completed", result.Summary)

	outcome := result.Completed[0]
	require.NotNil(t, outcome.Analysis)
	assert.GreaterOrEqual(t, outcome.Analysis.Confidence, DefaultCompletionThreshold)
	require.NotNil(t, outcome.State)
	assert.Equal(t, workflow.StatusCompleted, outcome.State.Status())

	// The task store saw the status update.
	stored, err := fixture.tasks.FindByID(t.Context(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
	assert.Equal(t, result.SessionID, stored.Metadata["last_session_id"])
}

// A confirmation failure is fatal for that task only: its outcome carries the
// error with no reason, and the rest of the batch still runs.
func TestRunConfirmationFailureIsIsolated(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())
	fixture.confirmer.errs["t2"] = errors.New("confirmation channel closed")

	batch := []models.Task{featureTask("t1"), featureTask("t2"), featureTask("t3")}
	for i := range batch {
		copied := batch[i]
		fixture.tasks.Seed(&copied)
	}

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: batch})
	require.NoError(t, err)

	assert.True(t, result.Success, "run-level success is independent of task failures")
	require.Len(t, result.Completed, 2)
	assert.Equal(t, "t1", result.Completed[0].Task.ID)
	assert.Equal(t, "t3", result.Completed[1].Task.ID)

	require.Len(t, result.Failed, 1)
	failed := result.Failed[0]
	assert.Equal(t, "t2", failed.Task.ID)
	assert.Empty(t, failed.Reason)
	assert.Contains(t, failed.Error, "confirmation channel closed")
	assert.Equal(t, 1, result.Metadata.FailedCount)
}

func TestRunPausesOnUserInputRequired(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource("I can take approach A or B here, which option do you prefer?"), DefaultOptions())
	fixture.confirmer.results["t1"] = ConfirmationResult{Confirmed: false}
	fixture.tasks.Seed(&models.Task{ID: "t1", Status: models.TaskStatusPending})

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: []models.Task{featureTask("t1")}})
	require.NoError(t, err)

	require.Len(t, result.Paused, 1)
	assert.Equal(t, ReasonUserInputRequired, result.Paused[0].Reason)
	assert.Equal(t, workflow.StatusPaused, result.Paused[0].State.Status())
	assert.Equal(t, 1, result.Metadata.PausedCount)
	assert.Equal(t, "1 tasks paused, 0 failed", result.Summary)

	stored, err := fixture.tasks.FindByID(t.Context(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPaused, stored.Status)
}

func TestRunRecordsCompletionNotDetected(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource("Still thinking about the data model, nothing written yet beyond a sketch of the interfaces and a rough idea of how the pieces could fit together over the next iteration of this work."), DefaultOptions())
	fixture.tasks.Seed(&models.Task{ID: "t1", Status: models.TaskStatusPending})

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: []models.Task{featureTask("t1")}})
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, ReasonCompletionNotDetected, result.Failed[0].Reason)
	assert.Empty(t, result.Failed[0].Error)
	require.NotNil(t, result.Failed[0].Analysis)
	assert.Equal(t, "1/1 tasks failed", result.Summary)
}

func TestRunStopOnErrorAbortsBatch(t *testing.T) {
	options := DefaultOptions()
	options.StopOnError = true

	fixture := newFixture(t, response.NewStaticSource(completeResponse), options)
	fixture.confirmer.errs["t1"] = errors.New("boom")

	batch := []models.Task{featureTask("t1"), featureTask("t2")}
	for i := range batch {
		copied := batch[i]
		fixture.tasks.Seed(&copied)
	}

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: batch})
	require.NoError(t, err)

	assert.Len(t, result.Failed, 1)
	assert.Empty(t, result.Completed, "no further task starts after the abort")
}

func TestRunCooperativeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())
	fixture.confirmer.onCall = func(string) { cancel() }

	batch := []models.Task{featureTask("t1"), featureTask("t2"), featureTask("t3")}
	for i := range batch {
		copied := batch[i]
		fixture.tasks.Seed(&copied)
	}

	result, err := fixture.orchestrator.Run(ctx, Request{Tasks: batch})
	require.NoError(t, err)

	// The in-flight task finished; no further task started.
	total := len(result.Completed) + len(result.Failed) + len(result.Paused)
	assert.Equal(t, 1, total)
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())
	fixture.tasks.Seed(&models.Task{ID: "t1", Status: models.TaskStatusPending})

	_, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: []models.Task{featureTask("t1")}})
	require.NoError(t, err)

	counts := fixture.publisher.typeCounts()
	assert.Equal(t, 1, counts[events.RunStartedEvent])
	assert.Equal(t, 1, counts[events.RunFinishedEvent])
	assert.Equal(t, 1, counts[events.TaskCompletedEvent])
}

func TestRunSurvivesEventSinkFailure(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())
	fixture.publisher.fail = true
	fixture.tasks.Seed(&models.Task{ID: "t1", Status: models.TaskStatusPending})

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: []models.Task{featureTask("t1")}})
	require.NoError(t, err)
	assert.Len(t, result.Completed, 1)
}

func TestRunParsesPayload(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())
	fixture.tasks.Seed(&models.Task{ID: "t1", Status: models.TaskStatusPending})

	payload := []byte(`{"tasks":[{"id":"t1","type":"feature","title":"build the endpoint"}]}`)

	result, err := fixture.orchestrator.Run(t.Context(), Request{Payload: payload})
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, models.TaskStatusPending, result.Tasks[0].Status)
	assert.Len(t, result.Completed, 1)
}

func TestRunFailsOnInvalidPayload(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())

	result, err := fixture.orchestrator.Run(t.Context(), Request{Payload: []byte(`{"tasks":[{"id":"t1"}]}`)})
	require.Error(t, err)

	var stage *StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, StageParse, stage.Stage)

	assert.False(t, result.Success)
	assert.Zero(t, result.Metadata.TotalTasks)
}

func TestRunFailsOnDependencyCycle(t *testing.T) {
	fixture := newFixture(t, response.NewStaticSource(completeResponse), DefaultOptions())

	a := featureTask("a")
	a.Dependencies = []string{"b"}
	b := featureTask("b")
	b.Dependencies = []string{"a"}

	result, err := fixture.orchestrator.Run(t.Context(), Request{Tasks: []models.Task{a, b}})
	require.Error(t, err)

	var stage *StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, StageSequence, stage.Stage)
	assert.False(t, result.Success)
}

// Quality stage failures downgrade to "no quality data" instead of failing
// the task. With a confirmed task the rest of the pipeline still runs.
func TestRunToleratesQualityFailure(t *testing.T) {
	tasks := memory.NewTaskRepository()
	tasks.Seed(&models.Task{ID: "t1", Status: models.TaskStatusPending})

	engine, err := automation.NewEngine(memory.NewPreferenceRepository(), nil, nil, automation.Config{}, nil)
	require.NoError(t, err)

	detector, err := confidence.NewDefaultDetector()
	require.NoError(t, err)

	orch, err := New(Dependencies{
		Tasks:     tasks,
		Responses: response.NewStaticSource(completeResponse),
		Engine:    engine,
		Detector:  detector,
		Confirmer: &fakeConfirmer{},
		Quality: QualityAssessorFunc(func(context.Context, models.Task, string) (*models.QualityAssessment, error) {
			return nil, errors.New("assessor offline")
		}),
	}, DefaultOptions())
	require.NoError(t, err)

	result, err := orch.Run(t.Context(), Request{Tasks: []models.Task{featureTask("t1")}})
	require.NoError(t, err)

	// Without quality data the composite drops but the task is still
	// classified; whichever bucket it lands in, the run itself succeeded.
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Metadata.TotalTasks)
}

func TestSummaryPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		metadata RunMetadata
		want     string
	}{
		{name: "all completed", metadata: RunMetadata{TotalTasks: 3, CompletedCount: 3}, want: "all 3 tasks completed"},
		{name: "mixed", metadata: RunMetadata{TotalTasks: 4, CompletedCount: 2, FailedCount: 1, PausedCount: 1}, want: "2/4 tasks completed, 1 failed, 1 paused"},
		{name: "paused only", metadata: RunMetadata{TotalTasks: 3, FailedCount: 1, PausedCount: 2}, want: "2 tasks paused, 1 failed"},
		{name: "all failed", metadata: RunMetadata{TotalTasks: 2, FailedCount: 2}, want: "2/2 tasks failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &RunResult{Metadata: tt.metadata}
			result.summarize()
			assert.Equal(t, tt.want, result.Summary)
		})
	}
}

func TestCompleteResponseLength(t *testing.T) {
	// The canned response must stay in the [200,3000] band the context
	// strategy rewards; guard against drift when editing it.
	assert.GreaterOrEqual(t, len(completeResponse), 200)
	assert.LessOrEqual(t, len(completeResponse), 3000)
	assert.True(t, strings.HasSuffix(completeResponse, "Done."))
}
