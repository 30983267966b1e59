package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/billing-reconciler/internal/api"
	"github.com/Priya8975/billing-reconciler/internal/billing"
	"github.com/Priya8975/billing-reconciler/internal/config"
	"github.com/Priya8975/billing-reconciler/internal/engine"
	"github.com/Priya8975/billing-reconciler/internal/reconciler"
	"github.com/Priya8975/billing-reconciler/internal/store"
	ws "github.com/Priya8975/billing-reconciler/internal/websocket"
	"github.com/Priya8975/billing-reconciler/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// WebSocket hub for the ops dashboard
	hub := ws.NewHub(logger)
	go hub.Run()

	// Redis-backed primitives
	rateLimiter := engine.NewRateLimiter(redisStore.Client(), logger)
	circuitBreaker := engine.NewCircuitBreaker(redisStore.Client(), logger)
	retryQueue := engine.NewRetryQueue(redisStore, logger)

	// Vendor API client and the reconciler core
	vendorClient := billing.NewHTTPClient(cfg.VendorAPIURL, cfg.VendorAPIKey)
	rec := reconciler.New(pgStore, pgStore, vendorClient, circuitBreaker, retryQueue, hub, logger)

	// Retry worker pool + dispatcher
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	applier := worker.NewApplier(rec, logger)
	pool := worker.NewPool(cfg.NumWorkers, applier, logger)
	pool.Start(workerCtx)

	dispatcher := worker.NewDispatcher(redisStore.Client(), pool, logger)
	go dispatcher.Start(workerCtx)

	// Requeue anything a previous process recorded but never finished
	sweeper := worker.NewSweeper(pgStore, retryQueue, logger)
	if err := sweeper.Sweep(ctx); err != nil {
		logger.Warn("startup sweep failed", "error", err)
	}

	// Setup router
	router := api.NewRouter(cfg, pgStore, rec, rateLimiter, retryQueue, circuitBreaker, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	cancelWorkers()
	pool.Stop()

	logger.Info("server stopped")
}
