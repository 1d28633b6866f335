package appointment

import (
	"appointly/core/cache"
	"appointly/core/middleware"
	"appointly/modules/appointment/controller"
	"appointly/modules/appointment/repository"
	"appointly/modules/appointment/router"
	"appointly/modules/appointment/service"
	calendarService "appointly/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, repo repository.AppointmentRepository, sync calendarService.SyncService, c cache.Cache) {
	appointmentSvc := service.NewAppointmentService(repo, sync)
	appointmentController := controller.NewAppointmentController(appointmentSvc)

	mw := middleware.NewMiddleware(c)
	router.NewAppointmentRouter(appointmentController).Setup(e, mw)
}
