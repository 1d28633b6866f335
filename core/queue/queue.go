package queue

import (
	"context"

	"appointly/core/logger"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks. Kept as an interface so services can be
// tested without a running Redis.
type Client interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func NewClient(cfg Config) Client {
	return &asynqClient{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
	}
}

func (c *asynqClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		logger.Error("Queue:Enqueue:Error", "type", task.Type(), "error", err)
		return err
	}
	logger.Info("Queue:Enqueue:Success", "type", task.Type(), "id", info.ID, "queue", info.Queue)
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}

// NewServer builds the asynq worker that processes background tasks in the
// same process as the API server.
func NewServer(cfg Config, mux *asynq.ServeMux) *asynq.Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 5,
		},
	)
	if err := srv.Start(mux); err != nil {
		logger.Error("Queue:Server:Start:Error", "error", err)
	}
	return srv
}
