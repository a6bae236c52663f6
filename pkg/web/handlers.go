// Package web provides the HTTP surface: the webhook ingest endpoint and the
// REST read API over workflows, executions and campaigns.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

const defaultExecutionLimit = 50

type APIHandlers struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(p persistence.Persistence, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		validator:   validate,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	storeID := c.Query("store_id")
	if storeID == "" {
		return badRequest(c, "store_id query parameter is required")
	}

	workflows, err := h.persistence.Workflows().ByStore(c.Context(), storeID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.Workflows().ByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	workflow.ID = ""
	if err := h.persistence.Workflows().Save(c.Context(), &workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

// GetExecutions lists recent executions of a store, newest first, including
// per-step results and the error mirror for failed steps.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	storeID := c.Query("store_id")
	if storeID == "" {
		return badRequest(c, "store_id query parameter is required")
	}

	limit := defaultExecutionLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	executions, err := h.persistence.Executions().ByStore(c.Context(), storeID, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.Executions().ByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CreateCampaign(c fiber.Ctx) error {
	var campaign models.Campaign
	if err := c.Bind().JSON(&campaign); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(campaign); err != nil {
		return badRequest(c, err.Error())
	}

	campaign.ID = ""
	if campaign.Schedule != "" {
		campaign.Status = models.CampaignScheduled
	}

	if err := h.persistence.Campaigns().Save(c.Context(), &campaign); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (h *APIHandlers) GetCampaign(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Campaign ID is required")
	}

	campaign, err := h.persistence.Campaigns().ByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Campaign not found")
		}

		return internalError(c, err)
	}

	return c.JSON(campaign)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
