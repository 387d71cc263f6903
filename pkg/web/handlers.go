package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/autofin/autofin/pkg/models"
	"github.com/autofin/autofin/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	runService        *services.Run
	preferenceService *services.Preference
	validator         *validator.Validate
}

func NewAPIHandlers(
	runService *services.Run,
	preferenceService *services.Preference,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		runService:        runService,
		preferenceService: preferenceService,
		validator:         validator,
	}
}

// StartRun submits a task batch and runs the completion pipeline over it.
func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.runService.Start(c.Context(), services.StartRunRequest{
		Tasks:   req.Tasks,
		Payload: req.Payload,
		UserID:  req.UserID,
	})
	if err != nil {
		// Setup failures still carry a session; surface both the problem
		// and the recorded result shape via the error mapping.
		if result == nil || errors.Is(err, services.ErrEmptyBatch) {
			return handleServiceError(c, err)
		}

		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetRun returns a recorded run by session ID.
func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	result, err := h.runService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// ListRuns returns recorded runs, newest first.
func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	runs := h.runService.List(c.Context())

	return c.JSON(fiber.Map{
		"runs":        runs,
		"total_count": len(runs),
	})
}

// GetUserPreference returns the stored automation preference for a user.
func (h *APIHandlers) GetUserPreference(c fiber.Ctx) error {
	return h.getPreference(c, models.ScopeUser)
}

// SetUserPreference stores the automation preference for a user.
func (h *APIHandlers) SetUserPreference(c fiber.Ctx) error {
	return h.setPreference(c, models.ScopeUser)
}

// DeleteUserPreference removes the stored automation preference for a user.
func (h *APIHandlers) DeleteUserPreference(c fiber.Ctx) error {
	return h.deletePreference(c, models.ScopeUser)
}

// GetProjectSetting returns the stored automation setting for a project.
func (h *APIHandlers) GetProjectSetting(c fiber.Ctx) error {
	return h.getPreference(c, models.ScopeProject)
}

// SetProjectSetting stores the automation setting for a project.
func (h *APIHandlers) SetProjectSetting(c fiber.Ctx) error {
	return h.setPreference(c, models.ScopeProject)
}

// DeleteProjectSetting removes the stored automation setting for a project.
func (h *APIHandlers) DeleteProjectSetting(c fiber.Ctx) error {
	return h.deletePreference(c, models.ScopeProject)
}

func (h *APIHandlers) getPreference(c fiber.Ctx, scope models.PreferenceScope) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Owner ID is required")
	}

	var (
		pref *models.AutomationPreference
		err  error
	)

	if scope == models.ScopeUser {
		pref, err = h.preferenceService.GetUserPreference(c.Context(), id)
	} else {
		pref, err = h.preferenceService.GetProjectSetting(c.Context(), id)
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pref)
}

func (h *APIHandlers) setPreference(c fiber.Ctx, scope models.PreferenceScope) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Owner ID is required")
	}

	var req SetPreferenceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var (
		saved *models.AutomationPreference
		err   error
	)

	if scope == models.ScopeUser {
		saved, err = h.preferenceService.SetUserPreference(c.Context(), req.toPreference(id, scope))
	} else {
		saved, err = h.preferenceService.SetProjectSetting(c.Context(), req.toPreference(id, scope))
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) deletePreference(c fiber.Ctx, scope models.PreferenceScope) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Owner ID is required")
	}

	var err error

	if scope == models.ScopeUser {
		err = h.preferenceService.DeleteUserPreference(c.Context(), id)
	} else {
		err = h.preferenceService.DeleteProjectSetting(c.Context(), id)
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	runCheck, runOk := h.runService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Autofin API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if runOk {
		status = "healthy"
		message = "Autofin API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"runs": runCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
