package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/api/routes"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/cache"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/config"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/database"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/di"
	"github.com/rail-service/crosschain_orchestrator/pkg/graceful"
	"github.com/rail-service/crosschain_orchestrator/pkg/logger"
	"github.com/rail-service/crosschain_orchestrator/pkg/metrics"
	"github.com/rail-service/crosschain_orchestrator/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()

	tracingShutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	secretsManager, err := di.NewSecretsManager(ctx, cfg.Secrets)
	if err != nil {
		log.Fatal("Failed to create secrets manager", zap.Error(err))
	}
	if err := di.ResolveAPIKeys(ctx, cfg, secretsManager, log); err != nil {
		log.Fatal("Failed to resolve API keys", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := di.NewContainer(ctx, cfg, db, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create DI container", zap.Error(err))
	}

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        routes.SetupRoutes(container),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	shutdown := graceful.NewShutdownManager(server, log)
	shutdown.Register("tracing", graceful.ShutdownFunc(func(timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return tracingShutdown(ctx)
	}))
	shutdown.Register("database", graceful.ShutdownFunc(func(time.Duration) error { return db.Close() }))
	shutdown.Register("redis", graceful.ShutdownFunc(func(time.Duration) error { return redisClient.Close() }))

	if container.Reconciler != nil {
		if err := container.Reconciler.Start(ctx); err != nil {
			log.Fatal("Failed to start operation reconciler", zap.Error(err))
		}
		shutdown.Register("operation_reconciler", container.Reconciler)
	}

	if container.CleanupWorker != nil {
		if err := container.CleanupWorker.Start(); err != nil {
			log.Fatal("Failed to start cleanup worker", zap.Error(err))
		}
		shutdown.Register("saga_cleanup", graceful.ShutdownFunc(func(time.Duration) error {
			container.CleanupWorker.Stop()
			return nil
		}))
	}

	go func() {
		log.Info("Starting health server",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Environment))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnections.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	shutdown.WaitForShutdown(ctx)
}
