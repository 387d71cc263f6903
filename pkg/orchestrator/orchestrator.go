// Package orchestrator sequences the task completion pipeline: parse the
// batch, order it, then per task assess quality, solicit confirmation, fall
// back to user-input detection and finally detect completion. Tasks are
// processed strictly sequentially because later tasks may depend on earlier
// ones' side effects; failure of one task never aborts the run unless
// StopOnError says so.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/autofin/autofin/pkg/automation"
	"github.com/autofin/autofin/pkg/confidence"
	"github.com/autofin/autofin/pkg/eventbus"
	"github.com/autofin/autofin/pkg/events"
	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/otelhelper"
	"github.com/autofin/autofin/pkg/persistence"
	"github.com/autofin/autofin/pkg/response"
	"github.com/autofin/autofin/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Defaults.
const (
	DefaultCompletionThreshold = 0.6
	DefaultConfirmationTimeout = 10 * time.Second
	DefaultRunTimeout          = 300 * time.Second

	// autoConfirmQualityBar is the quality score at which a task skipping
	// human confirmation counts as auto-confirmed by quality.
	autoConfirmQualityBar = 0.8
)

// Dependencies carries the orchestrator's collaborators. Tasks, Responses,
// Engine, Detector and Confirmer are required; the rest degrade gracefully
// when absent.
type Dependencies struct {
	Tasks     persistence.TaskRepository
	Responses response.Source
	Engine    *automation.Engine
	Detector  *confidence.Detector
	Confirmer Confirmer

	Quality  QualityAssessor
	Fallback confidence.FallbackDetector
	Events   eventbus.EventPublisher
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

// Options tunes one orchestrator instance.
type Options struct {
	CompletionThreshold float64
	ConfirmationTimeout time.Duration
	RunTimeout          time.Duration
	StopOnError         bool
	FallbackEnabled     bool
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		CompletionThreshold: DefaultCompletionThreshold,
		ConfirmationTimeout: DefaultConfirmationTimeout,
		RunTimeout:          DefaultRunTimeout,
		FallbackEnabled:     true,
	}
}

func (o *Options) applyDefaults() {
	if o.CompletionThreshold == 0 {
		o.CompletionThreshold = DefaultCompletionThreshold
	}

	if o.ConfirmationTimeout == 0 {
		o.ConfirmationTimeout = DefaultConfirmationTimeout
	}

	if o.RunTimeout == 0 {
		o.RunTimeout = DefaultRunTimeout
	}
}

// Request describes one batch to run: either already-built tasks or a raw
// JSON payload for the parse stage.
type Request struct {
	Tasks   []models.Task
	Payload []byte
	UserID  string
}

// Orchestrator runs completion pipelines. One instance may serve concurrent
// runs; per-run state lives on the stack of Run.
type Orchestrator struct {
	deps    Dependencies
	options Options
	logger  *slog.Logger
}

// New validates the dependency set and builds an orchestrator.
func New(deps Dependencies, options Options) (*Orchestrator, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{name: "task repository", ok: deps.Tasks != nil},
		{name: "response source", ok: deps.Responses != nil},
		{name: "automation engine", ok: deps.Engine != nil},
		{name: "completion detector", ok: deps.Detector != nil},
		{name: "confirmer", ok: deps.Confirmer != nil},
	}

	for _, dep := range required {
		if !dep.ok {
			return nil, &MissingDependencyError{Name: dep.name}
		}
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Fallback == nil {
		deps.Fallback = confidence.NewMarkerFallbackDetector()
	}

	options.applyDefaults()

	return &Orchestrator{
		deps:    deps,
		options: options,
		logger:  deps.Logger.With("module", "orchestrator"),
	}, nil
}

// Run executes the pipeline over one batch. The returned result is write-once
// and always non-nil; the error is non-nil only for setup failures (parse,
// sequence), in which case Success is false and no task was attempted.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	result := &RunResult{
		SessionID: uuid.New().String(),
		StartedAt: time.Now(),
	}

	logger := o.logger.With("session_id", result.SessionID)

	ctx, cancel := context.WithTimeout(ctx, o.options.RunTimeout)
	defer cancel()

	ctx, span := o.startSpan(ctx, "orchestrator.run",
		attribute.String(otelhelper.SessionIDKey, result.SessionID))
	defer span.End()

	tasks := req.Tasks

	if len(tasks) == 0 && req.Payload != nil {
		parsed, err := parseBatch(req.Payload)
		if err != nil {
			result.Success = false
			result.Summary = "task batch could not be parsed"
			result.FinishedAt = time.Now()
			otelhelper.SetError(span, err)

			return result, &StageError{Stage: StageParse, Err: err}
		}

		tasks = parsed
	}

	ordered, err := sequenceTasks(tasks)
	if err != nil {
		result.Success = false
		result.Summary = "task batch could not be sequenced"
		result.FinishedAt = time.Now()
		otelhelper.SetError(span, err)

		return result, &StageError{Stage: StageSequence, Err: err}
	}

	result.Success = true
	result.Tasks = ordered
	result.Metadata.TotalTasks = len(ordered)

	o.emit(ctx, logger, result.SessionID, events.RunStarted{
		BaseEvent: o.baseEvent(events.RunStartedEvent, result.SessionID),
		TaskCount: len(ordered),
	})

	logger.InfoContext(ctx, "starting pipeline run", "task_count", len(ordered))

	for _, task := range ordered {
		// Cooperative cancellation: no new task starts once the run context
		// is done; the in-flight task always completes.
		if ctx.Err() != nil {
			logger.WarnContext(ctx, "run cancelled, skipping remaining tasks")

			break
		}

		outcome := o.processTask(ctx, logger, result.SessionID, task, req)
		result.record(outcome)
		o.persistOutcome(ctx, logger, result.SessionID, outcome)
		o.emitOutcome(ctx, logger, result.SessionID, outcome)

		if outcome.Status == OutcomeFailed && o.options.StopOnError {
			logger.ErrorContext(ctx, "aborting run on task failure",
				"task_id", task.ID, "error", outcome.Error)

			break
		}
	}

	result.summarize()
	result.FinishedAt = time.Now()

	o.emit(ctx, logger, result.SessionID, events.RunFinished{
		BaseEvent:      o.baseEvent(events.RunFinishedEvent, result.SessionID),
		CompletedCount: result.Metadata.CompletedCount,
		FailedCount:    result.Metadata.FailedCount,
		PausedCount:    result.Metadata.PausedCount,
		Summary:        result.Summary,
		Duration:       result.FinishedAt.Sub(result.StartedAt),
	})

	logger.InfoContext(ctx, "pipeline run finished", "summary", result.Summary)

	return result, nil
}

// processTask runs the per-task stages. A panic anywhere inside is recovered
// into a failed outcome so one misbehaving collaborator cannot take down the
// whole run.
func (o *Orchestrator) processTask(ctx context.Context, logger *slog.Logger, sessionID string, task models.Task, req Request) (outcome Outcome) {
	state := workflow.NewState()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "task processing panicked", "task_id", task.ID, "panic", r)

			outcome = o.failedOutcome(task, state, "", fmt.Errorf("task processing panicked: %v", r))
		}
	}()

	ctx, span := o.startSpan(ctx, "orchestrator.task",
		attribute.String(otelhelper.SessionIDKey, sessionID),
		attribute.String(otelhelper.TaskIDKey, task.ID),
		attribute.String(otelhelper.TaskTypeKey, string(task.Type)))
	defer span.End()

	logger = logger.With("task_id", task.ID, "task_type", task.Type)

	// Fast-path entry: the task goes straight to executing.
	state, err := state.TransitionTo(workflow.StatusExecuting, map[string]any{"task_id": task.ID}, nil)
	if err != nil {
		return o.failedOutcome(task, state, "", err)
	}

	responseText, err := o.deps.Responses.LatestResponse(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return o.failedOutcome(task, state, "", &StageError{Stage: StageCompletionDetect, Err: err})
	}

	// Quality assessment is advisory: a failure means "no quality data",
	// never a failed task.
	var qualityScore *float64

	if o.deps.Quality != nil {
		assessment, err := o.deps.Quality.Assess(ctx, task, responseText)
		if err != nil {
			logger.WarnContext(ctx, "quality assessment failed, continuing without quality data", "error", err)
		} else if assessment != nil {
			qualityScore = &assessment.Score
		}
	}

	dctx := automation.DecisionContext{
		UserID:     req.UserID,
		ProjectID:  task.ProjectID,
		Confidence: qualityScore,
	}

	confirmed := false
	confirmationMethod := ""

	if o.deps.Engine.RequiresConfirmation(ctx, task, dctx) {
		confirmCtx, cancel := context.WithTimeout(ctx, o.options.ConfirmationTimeout)

		confirmation, err := o.deps.Confirmer.Confirm(confirmCtx, task, responseText)

		cancel()

		if err != nil {
			// Confirmation failure is fatal for this task: the reason stays
			// unset and the error is carried on the outcome.
			otelhelper.SetError(span, err)

			return o.failedOutcome(task, state, "", &StageError{Stage: StageConfirm, Err: err})
		}

		confirmed = confirmation.Confirmed
		confirmationMethod = confirmation.Method
	} else {
		confirmed = true

		if qualityScore != nil && *qualityScore >= autoConfirmQualityBar {
			confirmationMethod = confidence.ConfirmationMethodAutoQuality
		}
	}

	state, err = state.TransitionTo(workflow.StatusRunning, nil, map[string]any{"confirmed": confirmed})
	if err != nil {
		return o.failedOutcome(task, state, "", err)
	}

	requiresUserInput := false

	if !confirmed && o.options.FallbackEnabled {
		fallback := o.deps.Fallback.Detect(responseText)
		requiresUserInput = fallback.RequiresUserInput

		if fallback.RequiresUserInput {
			logger.InfoContext(ctx, "task paused for user input", "markers", fallback.Markers)

			paused, err := state.TransitionTo(workflow.StatusPaused, nil, map[string]any{"markers": fallback.Markers})
			if err == nil {
				state = paused
			}

			return Outcome{
				Task:   task,
				Status: OutcomePaused,
				Reason: ReasonUserInputRequired,
				State:  state,
			}
		}
	}

	analysis := o.deps.Detector.Analyze(confidence.Input{
		Response:           responseText,
		TaskType:           task.Type,
		QualityScore:       qualityScore,
		Confirmed:          confirmed,
		ConfirmationMethod: confirmationMethod,
		RequiresUserInput:  requiresUserInput,
	})

	span.SetAttributes(attribute.Float64(otelhelper.ConfidenceKey, analysis.Confidence))

	if analysis.Confidence >= o.options.CompletionThreshold {
		completed, err := state.TransitionTo(workflow.StatusCompleted, nil,
			map[string]any{"confidence": analysis.Confidence})
		if err == nil {
			state = completed
		}

		logger.InfoContext(ctx, "task completed",
			"confidence", analysis.Confidence, "classification", analysis.Classification)

		return Outcome{
			Task:     task,
			Status:   OutcomeCompleted,
			Analysis: &analysis,
			State:    state,
		}
	}

	logger.InfoContext(ctx, "completion not detected",
		"confidence", analysis.Confidence, "classification", analysis.Classification)

	outcome = o.failedOutcome(task, state, ReasonCompletionNotDetected, nil)
	outcome.Analysis = &analysis

	return outcome
}

// failedOutcome moves the state to failed (when legal) and builds the failed
// outcome record.
func (o *Orchestrator) failedOutcome(task models.Task, state *workflow.State, reason string, err error) Outcome {
	if state != nil && state.CanTransitionTo(workflow.StatusFailed) {
		if failed, terr := state.TransitionTo(workflow.StatusFailed, nil, nil); terr == nil {
			state = failed
		}
	}

	outcome := Outcome{
		Task:   task,
		Status: OutcomeFailed,
		Reason: reason,
		Err:    err,
		State:  state,
	}

	if err != nil {
		outcome.Error = err.Error()
	}

	return outcome
}

// persistOutcome pushes the task's new status and bookkeeping metadata back
// to the task store. Persistence problems are logged, not fatal: the run
// result is already decided.
func (o *Orchestrator) persistOutcome(ctx context.Context, logger *slog.Logger, sessionID string, outcome Outcome) {
	status := map[string]models.TaskStatus{
		OutcomeCompleted: models.TaskStatusCompleted,
		OutcomeFailed:    models.TaskStatusFailed,
		OutcomePaused:    models.TaskStatusPaused,
	}[outcome.Status]

	if err := o.deps.Tasks.Update(ctx, outcome.Task.ID, map[string]any{"status": status}); err != nil {
		logger.WarnContext(ctx, "failed to persist task status", "task_id", outcome.Task.ID, "error", err)
	}

	metadata := map[string]any{"last_session_id": sessionID}
	if outcome.Analysis != nil {
		metadata["confidence"] = outcome.Analysis.Confidence
		metadata["classification"] = string(outcome.Analysis.Classification)
	}

	if err := o.deps.Tasks.UpdateMetadata(ctx, outcome.Task.ID, metadata); err != nil {
		logger.WarnContext(ctx, "failed to persist task metadata", "task_id", outcome.Task.ID, "error", err)
	}
}

func (o *Orchestrator) emitOutcome(ctx context.Context, logger *slog.Logger, sessionID string, outcome Outcome) {
	switch outcome.Status {
	case OutcomeCompleted:
		event := events.TaskCompleted{
			BaseEvent: o.baseEvent(events.TaskCompletedEvent, sessionID),
			TaskID:    outcome.Task.ID,
		}
		if outcome.Analysis != nil {
			event.Confidence = outcome.Analysis.Confidence
			event.Classification = outcome.Analysis.Classification
		}

		o.emit(ctx, logger, sessionID, event)
	case OutcomePaused:
		o.emit(ctx, logger, sessionID, events.TaskPaused{
			BaseEvent: o.baseEvent(events.TaskPausedEvent, sessionID),
			TaskID:    outcome.Task.ID,
			Reason:    outcome.Reason,
		})
	default:
		o.emit(ctx, logger, sessionID, events.TaskFailed{
			BaseEvent: o.baseEvent(events.TaskFailedEvent, sessionID),
			TaskID:    outcome.Task.ID,
			Reason:    outcome.Reason,
			Error:     outcome.Error,
		})
	}
}

// emit publishes fire-and-forget: event sink failures are logged and ignored.
func (o *Orchestrator) emit(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	if o.deps.Events == nil {
		return
	}

	if err := o.deps.Events.Publish(ctx, key, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, sessionID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o.deps.Tracer == nil {
		return otelhelper.NoopSpan(ctx)
	}

	return otelhelper.StartSpan(ctx, o.deps.Tracer, name, attrs...)
}
