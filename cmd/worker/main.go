package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/config"
	"github.com/nikhilbhutani/rentalcore/internal/database"
	"github.com/nikhilbhutani/rentalcore/internal/queue"
	"github.com/nikhilbhutani/rentalcore/internal/queue/workers"
	"github.com/nikhilbhutani/rentalcore/internal/storage"
	"github.com/nikhilbhutani/rentalcore/internal/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := app.New(cfg, app.Deps{
		Store: postgres.New(db),
		Files: storage.NewLocalStorage(cfg.Uploads.Dir),
	})

	redisOpt := queue.RedisOpt(cfg.Redis)
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	workers.Register(registry,
		workers.NewNotificationWorker(svc.Audit),
		workers.NewOverdueWorker(svc.Invoices),
		workers.NewCleanupWorker(svc.Uploads),
	)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	for taskType, cronspec := range queue.Schedule(cfg.Worker.OverdueCron, cfg.Worker.CleanupCron) {
		task, err := queue.NewTask(taskType, struct{}{})
		if err != nil {
			slog.Error("build scheduled task", "task", taskType, "error", err)
			os.Exit(1)
		}
		if _, err := scheduler.Register(cronspec, task); err != nil {
			slog.Error("register scheduled task", "task", taskType, "cron", cronspec, "error", err)
			os.Exit(1)
		}
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	srv.Shutdown()
}
