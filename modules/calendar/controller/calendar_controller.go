package controller

import (
	"strconv"
	"time"

	baseController "appointly/core/controller"
	"appointly/core/errors"
	"appointly/core/middleware"
	"appointly/modules/calendar/dto"
	"appointly/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	baseController.BaseController
	oauth       service.OAuthService
	connections service.ConnectionService
}

func NewCalendarController(oauth service.OAuthService, connections service.ConnectionService) *CalendarController {
	return &CalendarController{
		BaseController: baseController.NewBaseController(),
		oauth:          oauth,
		connections:    connections,
	}
}

// Connect starts the OAuth flow for a provider.
// GET /api/v1/private/calendar/connect/:provider
func (c *CalendarController) Connect(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	providerName := ctx.Param("provider")
	resp, appErr := c.oauth.GetAuthURL(ctx.Request().Context(), userID, providerName)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, resp, "authorization url issued")
}

// Callback completes the OAuth flow. The provider redirects here, so the
// route is public; the state token proves who started the flow.
// GET /api/v1/calendar/callback/:provider
func (c *CalendarController) Callback(ctx echo.Context) error {
	providerName := ctx.Param("provider")
	code := ctx.QueryParam("code")
	state := ctx.QueryParam("state")

	if errParam := ctx.QueryParam("error"); errParam != "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "authorization was denied: "+errParam, nil))
	}
	if code == "" || state == "" {
		return c.BadRequest(errors.ErrInvalidInput, "code and state are required")
	}

	result, appErr := c.oauth.HandleCallback(ctx.Request().Context(), providerName, code, state)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "calendar connected")
}

// GetConnections lists the current user's calendar connections.
// GET /api/v1/private/calendar/connections
func (c *CalendarController) GetConnections(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	connections, err := c.connections.GetConnections(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "failed to list connections", err))
	}
	return c.SuccessResponse(ctx, dto.CalendarConnectionListResponse{Connections: connections}, "")
}

// DisconnectCalendar removes one connection.
// DELETE /api/v1/private/calendar/connections/:id
func (c *CalendarController) DisconnectCalendar(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	connectionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid connection id")
	}

	if appErr := c.connections.DisconnectCalendar(ctx.Request().Context(), userID, connectionID); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, nil, "calendar disconnected")
}

// GetEvents reads events from one connected provider's calendar.
// GET /api/v1/private/calendar/events?provider=google&time_min=...&time_max=...&max=...
func (c *CalendarController) GetEvents(ctx echo.Context) error {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	providerName := ctx.QueryParam("provider")
	if providerName == "" {
		return c.BadRequest(errors.ErrInvalidInput, "provider is required")
	}

	now := time.Now().UTC()
	timeMin := ctx.QueryParam("time_min")
	if timeMin == "" {
		timeMin = now.Format(time.RFC3339)
	}
	timeMax := ctx.QueryParam("time_max")
	if timeMax == "" {
		timeMax = now.AddDate(0, 0, 7).Format(time.RFC3339)
	}
	max := 50
	if raw := ctx.QueryParam("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.BadRequest(errors.ErrInvalidInput, "max must be a positive integer")
		}
		max = parsed
	}

	events, appErr := c.connections.ListEvents(ctx.Request().Context(), userID, providerName, timeMin, timeMax, max)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, events, "")
}
