// Package web provides the HTTP control/status surface for provisioning
// workflows. The contract is deliberately poll-based: a client that
// disconnects can reattach and read consistent progress at any time.
package web

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/scheduler"
)

type APIHandlers struct {
	scheduler *scheduler.Scheduler
	validator *validator.Validate
}

func NewAPIHandlers(sched *scheduler.Scheduler, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		scheduler: sched,
		validator: validate,
	}
}

func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	var req StartWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	steps := make([]scheduler.StepSubmission, 0, len(req.Steps))
	for _, step := range req.Steps {
		steps = append(steps, scheduler.StepSubmission{
			Action:  models.ActionKind(step.Action),
			Label:   step.Label,
			Params:  step.Params,
			Timeout: time.Duration(step.TimeoutSeconds) * time.Second,
		})
	}

	workflowID, err := h.scheduler.Start(c.Context(), scheduler.StartRequest{
		Steps:     steps,
		Target:    req.Target,
		StepDelay: time.Duration(req.StepDelaySeconds) * time.Second,
	})
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartWorkflowResponse{WorkflowID: workflowID})
}

func (h *APIHandlers) StopWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.scheduler.Stop(c.Context(), id); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(AckResponse{Acknowledged: true, WorkflowID: id})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	state, err := h.scheduler.State(c.Context())
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) GetWorkflowSummary(c fiber.Ctx) error {
	summary, err := h.scheduler.Summary(c.Context())
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) ClearWorkflow(c fiber.Ctx) error {
	if err := h.scheduler.Clear(c.Context()); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(AckResponse{Acknowledged: true})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"message":   "Provisioning API is healthy",
		"timestamp": time.Now().UTC(),
	})
}
