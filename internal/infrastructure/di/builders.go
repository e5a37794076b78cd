package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	domainrepos "github.com/rail-service/crosschain_orchestrator/internal/domain/repositories"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/notification"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/apiclient"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/bridgetransport"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/protocol"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/providers"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/config"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/repositories"
	"github.com/rail-service/crosschain_orchestrator/pkg/retry"
	"github.com/rail-service/crosschain_orchestrator/pkg/secrets"
	"github.com/rail-service/crosschain_orchestrator/pkg/security"
)

// RepositoryBuilder constructs the Postgres repositories
type RepositoryBuilder struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRepositoryBuilder(db *sqlx.DB, logger *zap.Logger) *RepositoryBuilder {
	return &RepositoryBuilder{db: db, logger: logger}
}

type Repositories struct {
	Operations domainrepos.OperationRepository
	Quotes     domainrepos.QuoteRepository
}

func (b *RepositoryBuilder) Build() *Repositories {
	return &Repositories{
		Operations: repositories.NewOperationRepository(b.db, b.logger),
		Quotes:     repositories.NewQuoteRepository(b.db, b.logger),
	}
}

// UpstreamBuilder constructs the HTTP adapters for bridge transport, provider directory and protocols
type UpstreamBuilder struct {
	cfg    *config.Config
	cache  providers.Cache
	logger *zap.Logger
}

func NewUpstreamBuilder(cfg *config.Config, cache providers.Cache, logger *zap.Logger) *UpstreamBuilder {
	return &UpstreamBuilder{cfg: cfg, cache: cache, logger: logger}
}

type Upstreams struct {
	Bridge    *bridgetransport.Client
	Directory *providers.Directory
	Protocols *protocol.Registry
}

func (b *UpstreamBuilder) Build() (*Upstreams, error) {
	if b.cfg.BridgeTransport.BaseURL == "" {
		return nil, fmt.Errorf("bridge transport base URL is required")
	}

	registry := protocol.NewRegistry(b.logger)
	for name, apiCfg := range b.cfg.Protocols {
		if apiCfg.BaseURL == "" {
			b.logger.Warn("Skipping protocol without base URL", zap.String("protocol", name))
			continue
		}
		registry.Register(name, protocol.NewHTTPAdapter(apiClientConfig("protocol-"+strings.ToLower(name), apiCfg), b.logger))
	}
	b.logger.Info("Protocol adapters registered", zap.Strings("protocols", registry.Protocols()))

	return &Upstreams{
		Bridge: bridgetransport.NewClient(apiClientConfig(bridgetransport.ProviderName, b.cfg.BridgeTransport), b.logger),
		Directory: providers.NewDirectory(
			apiClientConfig("provider-directory", b.cfg.Providers.APIConfig),
			b.cache,
			b.cfg.Providers.ListCacheTTL,
			b.logger,
		),
		Protocols: registry,
	}, nil
}

// NewNotificationPublisher selects the publisher named by the notification provider
func NewNotificationPublisher(ctx context.Context, cfg config.NotificationConfig, logger *zap.Logger) (notification.Publisher, error) {
	switch cfg.Provider {
	case "sns":
		publisher, err := adapters.NewSNSPublisher(ctx, adapters.SNSConfig{
			Region:        cfg.Region,
			TopicARN:      cfg.TopicARN,
			PushTopicARN:  cfg.PushTopicARN,
			SMSTopicARN:   cfg.SMSTopicARN,
			EmailTopicARN: cfg.EmailTopicARN,
			QueueURL:      cfg.QueueURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	case "", "log":
		return notification.NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification provider %q", cfg.Provider)
	}
}

func apiClientConfig(name string, c config.APIConfig) apiclient.Config {
	policy := retry.DefaultPolicy()
	if c.MaxRetries > 0 {
		policy.MaxRetries = c.MaxRetries
	}
	policy.MaxBackoff = 5 * time.Second
	return apiclient.Config{
		Name:              name,
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Retry:             policy,
	}
}

// NewSecretsManager builds the secret lookup named by the secrets provider
func NewSecretsManager(ctx context.Context, cfg config.SecretsConfig) (*secrets.Manager, error) {
	var provider secrets.Provider
	switch cfg.Provider {
	case "aws":
		awsProvider, err := secrets.NewAWSSecretsManagerProvider(ctx, cfg.Region, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		provider = awsProvider
	case "", "env":
		provider = secrets.NewEnvProvider()
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}
	if cfg.CacheTTL > 0 {
		provider = secrets.NewCachedProvider(provider, cfg.CacheTTL)
	}
	return secrets.NewManager(provider), nil
}

// ResolveAPIKeys fills upstream API keys left empty in cfg; missing secrets leave the key empty
func ResolveAPIKeys(ctx context.Context, cfg *config.Config, manager *secrets.Manager, logger *zap.Logger) error {
	resolve := func(name string, target *string, get func(context.Context) (string, error)) error {
		if *target != "" {
			return nil
		}
		value, err := get(ctx)
		if errors.Is(err, secrets.ErrSecretNotFound) {
			logger.Debug("No API key configured", zap.String("upstream", name))
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve %s API key: %w", name, err)
		}
		*target = value
		logger.Info("Resolved API key", zap.String("upstream", name), zap.String("api_key", security.MaskAPIKey(value)))
		return nil
	}

	if err := resolve("bridge_transport", &cfg.BridgeTransport.APIKey, manager.GetBridgeTransportAPIKey); err != nil {
		return err
	}
	if err := resolve("providers", &cfg.Providers.APIKey, manager.GetProvidersAPIKey); err != nil {
		return err
	}
	for name, apiCfg := range cfg.Protocols {
		protocolName := name
		if err := resolve("protocol_"+protocolName, &apiCfg.APIKey, func(ctx context.Context) (string, error) {
			return manager.GetProtocolAPIKey(ctx, protocolName)
		}); err != nil {
			return err
		}
		cfg.Protocols[name] = apiCfg
	}
	return nil
}
