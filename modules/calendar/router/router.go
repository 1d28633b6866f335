package router

import (
	"appointly/core/middleware"
	"appointly/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	controller *controller.CalendarController
}

func NewCalendarRouter(controller *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{
		controller: controller,
	}
}

func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// The provider redirects the browser here, so no auth middleware.
	v1.GET("/calendar/callback/:provider", r.controller.Callback)

	calendarRoutes := v1.Group("/private/calendar")
	calendarRoutes.Use(mw.AuthMiddleware())

	calendarRoutes.GET("/connect/:provider", r.controller.Connect)
	calendarRoutes.GET("/connections", r.controller.GetConnections)
	calendarRoutes.DELETE("/connections/:id", r.controller.DisconnectCalendar)
	calendarRoutes.GET("/events", r.controller.GetEvents)
}
