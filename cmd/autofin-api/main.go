package main

import (
	"context"
	"os"

	"github.com/autofin/autofin/pkg/automation"
	"github.com/autofin/autofin/pkg/cmd"
	"github.com/autofin/autofin/pkg/config"
	"github.com/autofin/autofin/pkg/log"
	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/orchestrator"
	"github.com/autofin/autofin/pkg/response"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "autofin-api",
		Usage:                 "Run completion pipelines and manage automation preferences",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("AUTOFIN_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "response-file",
				Usage:   "File the latest AI response is read from",
				Sources: cli.EnvVars("RESPONSE_FILE"),
			},
			&cli.BoolFlag{
				Name:  "auto-confirm",
				Usage: "Confirm every task without asking (development only)",
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka, none)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "cache-url",
				Usage:   "Preference cache URL (empty for in-memory, redis:// for Redis)",
				Sources: cli.EnvVars("CACHE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg := config.LoadOrDefault(command.String("config"))

			if level := command.String("log-level"); level != "" {
				cfg.LogLevel = level
			}

			if port := command.Int("port"); port != 0 {
				cfg.HTTP.Port = port
			}

			if provider := command.String("event-bus"); provider != "" {
				cfg.EventBus.Provider = provider
			}

			if url := command.String("cache-url"); url != "" {
				cfg.Cache.URL = url
			}

			log.Setup(cfg.LogLevel)

			logger.InfoContext(ctx, "Initializing Autofin API")

			eventBus := cmd.NewEventBus(cfg.EventBus.Provider, logger)
			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

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

			api, err := NewAPI(
				logger,
				cmd.NewTaskRepository(),
				engine,
				newResponseSource(command.String("response-file")),
				newConfirmer(command.Bool("auto-confirm")),
				eventBus,
				orchestrator.Options{
					CompletionThreshold: cfg.Pipeline.CompletionThreshold,
					ConfirmationTimeout: cfg.Pipeline.ConfirmationTimeout.Std(),
					RunTimeout:          cfg.Pipeline.RunTimeout.Std(),
					StopOnError:         cfg.Pipeline.StopOnError,
					FallbackEnabled:     !cfg.Pipeline.DisableFallback,
				},
			)
			if err != nil {
				return err
			}

			if err := api.Start(cfg.HTTP.Port); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
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

// newConfirmer builds the confirmation collaborator. Without auto-confirm,
// tasks that need confirmation stay unconfirmed and pause when the response
// asks for input.
func newConfirmer(autoConfirm bool) orchestrator.Confirmer {
	return orchestrator.ConfirmerFunc(func(_ context.Context, _ models.Task, _ string) (orchestrator.ConfirmationResult, error) {
		if autoConfirm {
			return orchestrator.ConfirmationResult{Confirmed: true, Method: "auto_flag"}, nil
		}

		return orchestrator.ConfirmationResult{}, nil
	})
}
