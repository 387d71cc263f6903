// Package main provides the Autofin worker: it sweeps paused tasks back into
// the pipeline on a schedule and logs pipeline events from the bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/autofin/autofin/pkg/automation"
	"github.com/autofin/autofin/pkg/cmd"
	"github.com/autofin/autofin/pkg/config"
	"github.com/autofin/autofin/pkg/confidence"
	"github.com/autofin/autofin/pkg/log"
	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/orchestrator"
	"github.com/autofin/autofin/pkg/response"
	"github.com/autofin/autofin/pkg/scheduler"
	"github.com/autofin/autofin/pkg/services"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "autofin-worker",
		EnableShellCompletion: true,
		Usage:                 "Resume paused tasks and observe pipeline events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("AUTOFIN_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "response-file",
				Usage:   "File the latest AI response is read from",
				Sources: cli.EnvVars("RESPONSE_FILE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka, none)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	cfg := config.LoadOrDefault(command.String("config"))

	if level := command.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if provider := command.String("event-bus"); provider != "" {
		cfg.EventBus.Provider = provider
	}

	log.Setup(cfg.LogLevel)

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("autofin-worker").With("workerId", workerID)

	logger.InfoContext(ctx, "Initializing Autofin Worker")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := cmd.NewEventBus(cfg.EventBus.Provider, logger)
	if eventBus != nil {
		defer func() {
			if err := eventBus.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()

		if err := subscribeToEvents(ctx, eventBus, logger); err != nil {
			return err
		}
	}

	tasks := cmd.NewTaskRepository()

	engine, err := automation.NewEngine(
		cmd.NewPreferenceRepository(),
		nil,
		cmd.NewCache(cfg.Cache.URL),
		automation.Config{
			DefaultLevel:        models.AutomationLevel(cfg.Engine.DefaultLevel),
			ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
			UserTTL:             cfg.Engine.UserTTL.Std(),
			ProjectTTL:          cfg.Engine.ProjectTTL.Std(),
		},
		logger,
	)
	if err != nil {
		return err
	}

	detector, err := confidence.NewDefaultDetector()
	if err != nil {
		return err
	}

	// Unattended resumes never confirm on a human's behalf: a task that still
	// needs input pauses again.
	denyConfirmer := orchestrator.ConfirmerFunc(func(_ context.Context, _ models.Task, _ string) (orchestrator.ConfirmationResult, error) {
		return orchestrator.ConfirmationResult{}, nil
	})

	orch, err := orchestrator.New(orchestrator.Dependencies{
		Tasks:     tasks,
		Responses: newResponseSource(command.String("response-file")),
		Engine:    engine,
		Detector:  detector,
		Confirmer: denyConfirmer,
		Events:    eventBus,
		Logger:    logger,
	}, orchestrator.Options{
		CompletionThreshold: cfg.Pipeline.CompletionThreshold,
		ConfirmationTimeout: cfg.Pipeline.ConfirmationTimeout.Std(),
		RunTimeout:          cfg.Pipeline.RunTimeout.Std(),
		StopOnError:         cfg.Pipeline.StopOnError,
		FallbackEnabled:     !cfg.Pipeline.DisableFallback,
	})
	if err != nil {
		return err
	}

	runs := services.NewRun(orch, logger)

	sweeper, err := scheduler.NewSweeper(runs, tasks, cfg.Sweeper.Projects, cfg.Sweeper.Spec, logger)
	if err != nil {
		return err
	}

	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Autofin Worker started")

	<-ctx.Done()

	logger.Info("Shutting down Autofin Worker")

	return sweeper.Stop(context.Background())
}

// newResponseSource reads responses from the given file, or serves empty
// responses when no file is configured.
func newResponseSource(path string) response.Source {
	if path == "" {
		return response.SourceFunc(func(context.Context) (string, error) {
			return "", nil
		})
	}

	return response.NewFileSource(path)
}
