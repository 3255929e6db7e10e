// Package main provides the Caseflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/caseflow/caseflow/pkg/engine"
	"github.com/caseflow/caseflow/pkg/eventbus"
	"github.com/caseflow/caseflow/pkg/expr"
	"github.com/caseflow/caseflow/pkg/graph"
	"github.com/caseflow/caseflow/pkg/persistence"
	"github.com/caseflow/caseflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *engine.Engine
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	engineOptions ...engine.Option,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		engine:      engine.NewEngine(logger, store, expr.NewPongo2Evaluator(), eventBus, engineOptions...),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.persistence, graph.NewModel(a.persistence), a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Caseflow API")
	})

	tasks := app.Group("/tasks")
	tasks.Get("/", handlers.GetTasks)
	tasks.Post("/", handlers.CreateTask)
	tasks.Get("/:slug", handlers.GetTask)

	workflows := app.Group("/workflows")
	workflows.Get("/", handlers.GetWorkflows)
	workflows.Post("/", handlers.CreateWorkflow)
	workflows.Get("/:slug", handlers.GetWorkflow)
	workflows.Get("/:slug/cases", handlers.GetWorkflowCases)
	workflows.Post("/:slug/flows", handlers.CreateFlow)

	forms := app.Group("/forms")
	forms.Post("/", handlers.CreateForm)
	forms.Get("/:slug", handlers.GetForm)

	cases := app.Group("/cases")
	cases.Post("/", handlers.StartCase)
	cases.Get("/:id", handlers.GetCase)
	cases.Post("/:id/cancel", handlers.CancelCase)
	cases.Get("/:id/work-items", handlers.GetCaseWorkItems)
	cases.Post("/:id/work-items", handlers.CreateCaseWorkItem)

	workItems := app.Group("/work-items")
	workItems.Get("/:id", handlers.GetWorkItem)
	workItems.Post("/:id/complete", handlers.CompleteWorkItem)
	workItems.Post("/:id/skip", handlers.SkipWorkItem)
	workItems.Post("/:id/cancel", handlers.CancelWorkItem)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
