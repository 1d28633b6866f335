package notification

import (
	"appointly/core/config"
	"appointly/core/constants"
	"appointly/core/queue"
	"appointly/modules/notification/service"

	"github.com/hibiken/asynq"
)

// Init wires the notification services and registers task handlers on the
// worker mux. The returned service satisfies the calendar module's
// ReconnectNotifier.
func Init(mux *asynq.ServeMux, q queue.Client, smtpCfg config.SMTPConfig) *service.NotificationService {
	mailer := service.NewMailer(smtpCfg)
	mux.Handle(constants.TaskNotifyReconnect, service.NewReconnectHandler(mailer))
	return service.NewNotificationService(q)
}
