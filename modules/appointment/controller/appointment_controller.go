package controller

import (
	baseController "appointly/core/controller"
	"appointly/core/errors"
	"appointly/core/middleware"
	"appointly/modules/appointment/dto"
	"appointly/modules/appointment/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AppointmentController struct {
	baseController.BaseController
	service service.AppointmentService
}

func NewAppointmentController(svc service.AppointmentService) *AppointmentController {
	return &AppointmentController{
		BaseController: baseController.NewBaseController(),
		service:        svc,
	}
}

// Create books an appointment and pushes it to the user's calendars.
// POST /api/v1/private/appointments
func (c *AppointmentController) Create(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	var req dto.CreateAppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	resp, appErr := c.service.Create(ctx.Request().Context(), userID, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, resp, "appointment created")
}

// List returns the user's appointments.
// GET /api/v1/private/appointments
func (c *AppointmentController) List(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	appointments, appErr := c.service.List(ctx.Request().Context(), userID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, dto.AppointmentListResponse{Appointments: appointments}, "")
}

// Get returns one appointment.
// GET /api/v1/private/appointments/:id
func (c *AppointmentController) Get(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid appointment id")
	}

	appt, appErr := c.service.Get(ctx.Request().Context(), userID, id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, appt, "")
}

// Update modifies an appointment and syncs only the changed fields.
// PUT /api/v1/private/appointments/:id
func (c *AppointmentController) Update(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid appointment id")
	}

	var req dto.UpdateAppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	resp, appErr := c.service.Update(ctx.Request().Context(), userID, id, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, resp, "appointment updated")
}

// Cancel marks the appointment cancelled and removes its calendar events.
// POST /api/v1/private/appointments/:id/cancel
func (c *AppointmentController) Cancel(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid appointment id")
	}

	resp, appErr := c.service.Cancel(ctx.Request().Context(), userID, id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, resp, "appointment cancelled")
}
