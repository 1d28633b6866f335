package router

import (
	"appointly/core/middleware"
	"appointly/modules/appointment/controller"

	"github.com/labstack/echo/v4"
)

type AppointmentRouter struct {
	controller *controller.AppointmentController
}

func NewAppointmentRouter(controller *controller.AppointmentController) *AppointmentRouter {
	return &AppointmentRouter{
		controller: controller,
	}
}

func (r *AppointmentRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	appointmentRoutes := v1.Group("/private/appointments")
	appointmentRoutes.Use(mw.AuthMiddleware())

	appointmentRoutes.POST("", r.controller.Create)
	appointmentRoutes.GET("", r.controller.List)
	appointmentRoutes.GET("/:id", r.controller.Get)
	appointmentRoutes.PUT("/:id", r.controller.Update)
	appointmentRoutes.POST("/:id/cancel", r.controller.Cancel)
}
