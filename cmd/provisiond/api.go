// Package main provides the provisioning daemon.
package main

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/unearth4334/vast-api-sub001/pkg/scheduler"
	"github.com/unearth4334/vast-api-sub001/pkg/web"
)

type API struct {
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	validate  *validator.Validate
}

func NewAPI(logger *slog.Logger, sched *scheduler.Scheduler) *API {
	return &API{
		logger:    logger,
		scheduler: sched,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.scheduler, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Provisioning API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.StartWorkflow)
	w.Post("/:id/stop", handlers.StopWorkflow)
	w.Get("/current", handlers.GetWorkflow)
	w.Get("/current/summary", handlers.GetWorkflowSummary)
	w.Post("/clear", handlers.ClearWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}
