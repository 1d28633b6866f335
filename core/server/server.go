package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appointly/core/cache"
	"appointly/core/config"
	"appointly/core/crypto"
	"appointly/core/database"
	"appointly/core/logger"
	"appointly/core/queue"
	"appointly/modules/appointment"
	apptRepository "appointly/modules/appointment/repository"
	"appointly/modules/calendar"
	"appointly/modules/calendar/provider"
	"appointly/modules/notification"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// Run wires every layer together and serves until interrupted.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	redisCache, err := cache.Connect(cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisCache.Close()

	vault, err := crypto.NewVault(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("init token vault: %w", err)
	}

	google, err := provider.NewGoogleProvider(cfg.GoogleAPI)
	if err != nil {
		return fmt.Errorf("init google provider: %w", err)
	}
	microsoft, err := provider.NewMicrosoftProvider(cfg.MicrosoftAPI)
	if err != nil {
		return fmt.Errorf("init microsoft provider: %w", err)
	}
	providers := provider.NewRegistry(google, microsoft)

	queueCfg := queue.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}
	queueClient := queue.NewClient(queueCfg)
	defer queueClient.Close()

	mux := asynq.NewServeMux()
	notifier := notification.Init(mux, queueClient, cfg.SMTP)
	worker := queue.NewServer(queueCfg, mux)
	defer worker.Shutdown()

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	apptRepo := apptRepository.NewAppointmentRepository(db)
	calendarModule := calendar.Init(e, db, redisCache, vault, providers, notifier, apptRepo)
	appointment.Init(e, apptRepo, calendarModule.Sync, redisCache)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info("Server:Run:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Server:Run:Error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("Server:Run:ShuttingDown")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}
