package calendar

import (
	"appointly/core/cache"
	"appointly/core/crypto"
	"appointly/core/database"
	"appointly/core/middleware"
	apptRepository "appointly/modules/appointment/repository"
	"appointly/modules/calendar/controller"
	"appointly/modules/calendar/provider"
	"appointly/modules/calendar/repository"
	"appointly/modules/calendar/router"
	"appointly/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

// Module exposes the calendar services other modules depend on.
type Module struct {
	Connections service.ConnectionService
	Sync        service.SyncService
}

func Init(e *echo.Echo, db database.Database, c cache.Cache, vault crypto.Vault, providers *provider.Registry, notifier service.ReconnectNotifier, apptRepo apptRepository.AppointmentRepository) *Module {
	repo := repository.NewCalendarRepository(db)
	connectionSvc := service.NewConnectionService(repo, vault, providers, notifier)
	oauthSvc := service.NewOAuthService(providers, c, connectionSvc)
	syncSvc := service.NewSyncService(repo, apptRepo, connectionSvc, providers)

	calendarController := controller.NewCalendarController(oauthSvc, connectionSvc)

	mw := middleware.NewMiddleware(c)
	router.NewCalendarRouter(calendarController).Setup(e, mw)

	return &Module{Connections: connectionSvc, Sync: syncSvc}
}
