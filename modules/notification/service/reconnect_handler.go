package service

import (
	"context"
	"fmt"

	"appointly/core/logger"
	"appointly/modules/notification/dto"

	"github.com/hibiken/asynq"
)

const reconnectTemplate = `
<html>
  <body>
    <p>Hi,</p>
    <p>We could no longer access your {{.ProviderLabel}} calendar, so automatic
    syncing of your appointments has been paused.</p>
    <p>Please open your calendar settings and reconnect {{.ProviderLabel}} to
    resume syncing.</p>
    <p>The Appointly team</p>
  </body>
</html>
`

// ReconnectHandler turns queued reconnect tasks into emails.
type ReconnectHandler struct {
	mailer Mailer
}

func NewReconnectHandler(mailer Mailer) *ReconnectHandler {
	return &ReconnectHandler{mailer: mailer}
}

func (h *ReconnectHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := dto.UnmarshalReconnectPayload(t.Payload())
	if err != nil {
		// A payload that never parses will never parse; do not retry.
		logger.Error("ReconnectHandler:ProcessTask:BadPayload", "error", err)
		return fmt.Errorf("unmarshal reconnect payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" {
		logger.Warn("ReconnectHandler:ProcessTask:NoEmail", "user_id", payload.UserID, "provider", payload.Provider)
		return nil
	}

	label := providerLabel(payload.Provider)
	body, err := RenderTemplate("reconnect", reconnectTemplate, map[string]string{
		"ProviderLabel": label,
	})
	if err != nil {
		return fmt.Errorf("render reconnect template: %w", err)
	}

	subject := fmt.Sprintf("Action needed: reconnect your %s calendar", label)
	if err := h.mailer.Send(payload.Email, subject, body); err != nil {
		return fmt.Errorf("send reconnect email: %w", err)
	}
	logger.Info("ReconnectHandler:ProcessTask:Sent", "user_id", payload.UserID, "provider", payload.Provider)
	return nil
}

func providerLabel(provider string) string {
	switch provider {
	case "google":
		return "Google"
	case "microsoft":
		return "Microsoft"
	}
	return provider
}
