// Package scheduler periodically resubmits paused tasks to the completion
// pipeline. A task pauses when it needs user input; once the conversation
// moved on, the sweep gives it another chance to complete.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/persistence"
	"github.com/autofin/autofin/pkg/services"
	"github.com/robfig/cron/v3"
)

// DefaultSpec sweeps once a minute.
const DefaultSpec = "* * * * *"

// Sweeper scans the configured projects for paused tasks on a cron schedule
// and resubmits them as a fresh run.
type Sweeper struct {
	runs     *services.Run
	tasks    persistence.TaskRepository
	projects []string
	spec     string
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a sweeper over the given projects. The cron spec is
// validated up front; an empty spec gets DefaultSpec.
func NewSweeper(runs *services.Run, tasks persistence.TaskRepository, projects []string, spec string, logger *slog.Logger) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSpec
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		runs:     runs,
		tasks:    tasks,
		projects: projects,
		spec:     spec,
		logger:   logger.With("module", "scheduler"),
	}, nil
}

// Start schedules the sweep. Overlapping sweeps are skipped rather than
// stacked, and a panicking sweep is recovered by the cron runner.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "paused-task sweeper started", "spec", s.spec, "projects", len(s.projects))

	return nil
}

// Stop halts the schedule. A sweep already in flight finishes.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil

		s.logger.InfoContext(ctx, "paused-task sweeper stopped")
	}

	return nil
}

// Sweep resubmits every paused task across the configured projects. Failures
// in one project are logged and the rest still sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, projectID := range s.projects {
		if ctx.Err() != nil {
			return
		}

		s.sweepProject(ctx, projectID)
	}
}

func (s *Sweeper) sweepProject(ctx context.Context, projectID string) {
	logger := s.logger.With("project_id", projectID)

	paused, err := s.tasks.FindByProjectIDAndStatus(ctx, projectID, models.TaskStatusPaused)
	if err != nil {
		logger.WarnContext(ctx, "failed to list paused tasks", "error", err)

		return
	}

	if len(paused) == 0 {
		return
	}

	batch := make([]models.Task, 0, len(paused))
	for _, task := range paused {
		resumed := *task
		resumed.Status = models.TaskStatusPending
		batch = append(batch, resumed)
	}

	logger.InfoContext(ctx, "resubmitting paused tasks", "count", len(batch))

	result, err := s.runs.Start(ctx, services.StartRunRequest{Tasks: batch})
	if err != nil {
		logger.WarnContext(ctx, "paused-task run failed at setup", "error", err)

		return
	}

	logger.InfoContext(ctx, "paused-task sweep finished",
		"session_id", result.SessionID, "summary", result.Summary)
}
