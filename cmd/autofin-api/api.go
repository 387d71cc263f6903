// Package main provides the Autofin API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/autofin/autofin/pkg/automation"
	"github.com/autofin/autofin/pkg/confidence"
	"github.com/autofin/autofin/pkg/eventbus"
	"github.com/autofin/autofin/pkg/orchestrator"
	"github.com/autofin/autofin/pkg/persistence"
	"github.com/autofin/autofin/pkg/response"
	"github.com/autofin/autofin/pkg/services"
	"github.com/autofin/autofin/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger       *slog.Logger
	engine       *automation.Engine
	orchestrator *orchestrator.Orchestrator
	eventBus     eventbus.EventBus
	validate     *validator.Validate
}

func NewAPI(
	log *slog.Logger,
	tasks persistence.TaskRepository,
	engine *automation.Engine,
	source response.Source,
	confirmer orchestrator.Confirmer,
	eventBus eventbus.EventBus,
	options orchestrator.Options,
) (*API, error) {
	detector, err := confidence.NewDefaultDetector()
	if err != nil {
		return nil, err
	}

	var publisher eventbus.EventPublisher
	if eventBus != nil {
		publisher = eventBus
	}

	orch, err := orchestrator.New(orchestrator.Dependencies{
		Tasks:     tasks,
		Responses: source,
		Engine:    engine,
		Detector:  detector,
		Confirmer: confirmer,
		Events:    publisher,
		Logger:    log,
	}, options)
	if err != nil {
		return nil, err
	}

	return &API{
		logger:       log,
		engine:       engine,
		orchestrator: orch,
		eventBus:     eventBus,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() *fiber.App {
	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	runService := services.NewRun(a.orchestrator, a.logger)
	preferenceService := services.NewPreference(a.engine, publisher, a.logger)

	handlers := web.NewAPIHandlers(runService, preferenceService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Autofin API")
	})

	r := app.Group("/runs")
	r.Post("/", handlers.StartRun)
	r.Get("/", handlers.ListRuns)
	r.Get("/:id", handlers.GetRun)

	u := app.Group("/users")
	u.Get("/:id/automation", handlers.GetUserPreference)
	u.Put("/:id/automation", handlers.SetUserPreference)
	u.Delete("/:id/automation", handlers.DeleteUserPreference)

	p := app.Group("/projects")
	p.Get("/:id/automation", handlers.GetProjectSetting)
	p.Put("/:id/automation", handlers.SetProjectSetting)
	p.Delete("/:id/automation", handlers.DeleteProjectSetting)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
