// Package web provides the HTTP handlers of the dripflow API: publishing and enrollment,
// click and unsubscribe tracking, reply intake.
package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/services"
	"github.com/dukex/dripflow/pkg/tracking"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
)

type APIHandlers struct {
	publishing  *services.Publishing
	persistence persistence.Persistence
	signer      *tracking.Signer
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	clock       clockwork.Clock
	logger      *slog.Logger
}

// NewAPIHandlers creates the handlers. publisher may be nil, in which case engagement events
// are only stored.
func NewAPIHandlers(
	publishing *services.Publishing,
	persistence persistence.Persistence,
	signer *tracking.Signer,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
	clock clockwork.Clock,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		publishing:  publishing,
		persistence: persistence,
		signer:      signer,
		publisher:   publisher,
		validator:   validator,
		clock:       clock,
		logger:      logger.With("component", "web"),
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Post("/executions", h.PublishExecution)
	app.Post("/executions/:id/enroll", h.EnrollExecution)
	app.Post("/leads/:id/enroll", h.EnrollLead)

	app.Post("/replies", h.RecordReply)
	app.Get(tracking.ClickPath+":token", h.TrackClick)
	app.Get(tracking.UnsubscribePath, h.Unsubscribe)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": h.clock.Now().UTC(),
	})
}

func (h *APIHandlers) PublishExecution(c fiber.Ctx) error {
	var req PublishExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	_, steps, err := graph.DecodeDefinition(req.Steps)
	if err != nil {
		if errors.Is(err, graph.ErrInvalidDefinition) {
			return badRequest(c, err.Error())
		}

		return handleServiceError(c, services.NewValidationError("PublishExecution", "invalid_graph", err.Error(), errors.Join(services.ErrInvalidGraph, err)))
	}

	settings := models.DefaultWorkflowSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	execution := &models.WorkflowExecution{
		WorkflowID:    req.WorkflowID,
		CampaignID:    req.CampaignID,
		OwnerID:       req.OwnerID,
		OwnerTimezone: req.OwnerTimezone,
		Steps:         steps,
		Settings:      settings,
		CreatedAt:     h.clock.Now().UTC(),
	}

	enrolled, err := h.publishing.Publish(c.Context(), execution)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(PublishExecutionResponse{Execution: execution, Enrolled: enrolled})
}

func (h *APIHandlers) EnrollExecution(c fiber.Ctx) error {
	enrolled, err := h.publishing.EnrollExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(EnrollResponse{Enrolled: enrolled})
}

func (h *APIHandlers) EnrollLead(c fiber.Ctx) error {
	item, err := h.publishing.EnrollLead(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(item)
}
