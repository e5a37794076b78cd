package di

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/analytics"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/notification"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/operation"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/quote"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/providers"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/cache"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/config"
	"github.com/rail-service/crosschain_orchestrator/internal/workers/operation_reconciler"
	"github.com/rail-service/crosschain_orchestrator/internal/workers/saga_cleanup"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *cache.RedisClient
	Logger *zap.Logger

	Repositories *Repositories
	Upstreams    *Upstreams

	Publisher           notification.Publisher
	NotificationService *notification.Service
	AnalyticsService    *analytics.OperationAnalyticsService
	OperationService    *operation.Service
	QuoteService        *quote.Service

	Reconciler    *operation_reconciler.Reconciler
	CleanupWorker *saga_cleanup.Worker
}

// NewContainer wires repositories, upstream adapters, domain services and workers.
// redis may be nil, in which case provider listings are not cached and reconciliation runs without leases.
func NewContainer(ctx context.Context, cfg *config.Config, db *sqlx.DB, redis *cache.RedisClient, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, DB: db, Redis: redis, Logger: logger}

	c.Repositories = NewRepositoryBuilder(db, logger).Build()

	var providerCache providers.Cache
	var lease operation_reconciler.Lease
	if redis != nil {
		providerCache = redis
		lease = redis
	}

	upstreams, err := NewUpstreamBuilder(cfg, providerCache, logger).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream adapters: %w", err)
	}
	c.Upstreams = upstreams

	publisher, err := NewNotificationPublisher(ctx, cfg.Notification, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification publisher: %w", err)
	}
	c.Publisher = publisher
	c.NotificationService = notification.NewService(publisher, nil, logger)
	c.AnalyticsService = analytics.NewOperationAnalyticsService(logger)

	c.OperationService = operation.NewService(
		c.Repositories.Operations,
		upstreams.Bridge,
		upstreams.Protocols,
		c.NotificationService,
		c.AnalyticsService,
		logger,
	)

	c.QuoteService = quote.NewService(
		c.Repositories.Quotes,
		upstreams.Bridge,
		upstreams.Directory,
		quote.NewDefaultPricer(decimal.NewFromFloat(cfg.Quote.SlippageTolerance)),
		c.OperationService,
		c.AnalyticsService,
		quote.Config{TTL: cfg.Quote.TTL, MinConfidence: cfg.Quote.MinConfidence},
		logger,
	)

	if cfg.Reconciliation.Enabled {
		c.Reconciler, err = operation_reconciler.NewReconciler(operation_reconciler.Config{
			Enabled:        cfg.Reconciliation.Enabled,
			Interval:       cfg.Reconciliation.Interval,
			Threshold:      cfg.Reconciliation.Threshold,
			BatchSize:      cfg.Reconciliation.BatchSize,
			MaxConcurrency: cfg.Reconciliation.MaxConcurrency,
			LeaseTTL:       cfg.Reconciliation.LeaseTTL,
		}, c.Repositories.Operations, c.OperationService, lease, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create operation reconciler: %w", err)
		}
	}

	if cfg.Cleanup.Enabled {
		c.CleanupWorker = saga_cleanup.NewWorker(saga_cleanup.Config{
			Schedule:           cfg.Cleanup.Schedule,
			QuoteRetention:     cfg.Cleanup.QuoteRetention,
			OperationRetention: cfg.Cleanup.OperationRetention,
		}, c.Repositories.Quotes, c.Repositories.Operations, logger)
	}

	logger.Info("Container initialized",
		zap.Bool("reconciliation_enabled", c.Reconciler != nil),
		zap.Bool("cleanup_enabled", c.CleanupWorker != nil),
		zap.String("notification_provider", cfg.Notification.Provider))

	return c, nil
}
