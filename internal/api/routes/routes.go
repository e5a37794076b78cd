package routes

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/crosschain_orchestrator/internal/api/handlers"
	"github.com/rail-service/crosschain_orchestrator/internal/api/middleware"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/database"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/di"
	"github.com/rail-service/crosschain_orchestrator/pkg/metrics"
)

const version = "1.0.0"

// SetupRoutes builds the health and metrics server
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(metrics.GinMiddleware())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))

	checks := map[string]handlers.CheckFunc{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, container.DB) },
	}
	if container.Redis != nil {
		checks["redis"] = container.Redis.Ping
	}
	if hc, ok := container.Publisher.(interface{ HealthCheck(context.Context) error }); ok {
		checks["notifications"] = hc.HealthCheck
	}
	health := handlers.NewHealthHandler(checks, container.Logger, version)

	router.GET("/health", health.Readiness)
	router.GET("/health/liveness", health.Liveness)
	router.GET("/health/readiness", health.Readiness)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}
