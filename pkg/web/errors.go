package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/unearth4334/vast-api-sub001/pkg/registry"
	"github.com/unearth4334/vast-api-sub001/pkg/scheduler"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleSchedulerError provides typed error handling for scheduler errors.
func handleSchedulerError(c fiber.Ctx, err error) error {
	switch {
	case scheduler.IsAlreadyRunning(err):
		return conflict(c, "already_running", err.Error())

	case scheduler.IsWorkflowRunning(err):
		return conflict(c, "workflow_running", err.Error())

	case scheduler.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case registry.IsUnknownAction(err), registry.IsInvalidParams(err):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
