package service

import (
	"context"

	"appointly/core/constants"
	"appointly/core/logger"
	"appointly/core/queue"
	"appointly/modules/notification/dto"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// NotificationService enqueues user-facing notifications for background
// delivery. Enqueue failures are logged, never propagated: losing a courtesy
// email must not fail the operation that triggered it.
type NotificationService struct {
	queue queue.Client
}

func NewNotificationService(q queue.Client) *NotificationService {
	return &NotificationService{queue: q}
}

// NotifyReconnect asks the connection owner to reauthorize a calendar whose
// refresh token stopped working.
func (s *NotificationService) NotifyReconnect(ctx context.Context, userID uuid.UUID, provider string, email string) {
	payload := dto.ReconnectPayload{
		UserID:   userID.String(),
		Provider: provider,
		Email:    email,
	}
	raw, err := payload.Marshal()
	if err != nil {
		logger.Error("NotificationService:NotifyReconnect:Marshal:Error", "error", err, "user_id", userID)
		return
	}

	task := asynq.NewTask(constants.TaskNotifyReconnect, raw)
	if err := s.queue.Enqueue(ctx, task, asynq.MaxRetry(3)); err != nil {
		logger.Error("NotificationService:NotifyReconnect:Enqueue:Error", "error", err, "user_id", userID, "provider", provider)
		return
	}
	logger.Info("NotificationService:NotifyReconnect:Enqueued", "user_id", userID, "provider", provider)
}
