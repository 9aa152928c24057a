package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/rentalcore/internal/api"
	"github.com/nikhilbhutani/rentalcore/internal/api/handlers"
	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/cache"
	"github.com/nikhilbhutani/rentalcore/internal/config"
	"github.com/nikhilbhutani/rentalcore/internal/database"
	"github.com/nikhilbhutani/rentalcore/internal/queue"
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

	if cfg.Database.Migrate {
		if err := database.RunMigrations(ctx, cfg.Database.URL); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis backs the grant cache and the task queue. Without it the API
	// still serves, reading grants from the database.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	deps := app.Deps{
		Store: postgres.New(db),
		Files: storage.NewLocalStorage(cfg.Uploads.Dir),
	}
	checks := map[string]handlers.Pinger{"database": db}
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache and notifications", "error", err)
	} else {
		c := cache.NewCache(rdb, "rentalcore:")
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Cache, deps.Queue = c, qc
		checks["redis"] = c
	}

	svc := app.New(cfg, deps)

	// Sync on boot so a fresh deploy has every declared role and grant.
	if sum, err := svc.Syncer.Sync(ctx); err != nil {
		slog.Warn("permission sync reported errors", "skipped", sum.Skipped, "error", err)
	}

	router := api.NewRouter(cfg, svc, checks)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
