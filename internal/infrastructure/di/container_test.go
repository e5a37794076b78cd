package di

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/notification"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:     "test",
		BridgeTransport: config.APIConfig{BaseURL: "http://bridge.test", MaxRetries: 2},
		Providers: config.ProvidersConfig{
			APIConfig:    config.APIConfig{BaseURL: "http://providers.test"},
			ListCacheTTL: time.Minute,
		},
		Protocols: map[string]config.APIConfig{
			"Dex":     {BaseURL: "http://dex.test"},
			"lending": {BaseURL: "http://lending.test"},
			"staking": {},
		},
		Quote: config.QuoteConfig{TTL: 5 * time.Minute, SlippageTolerance: 0.5},
		Reconciliation: config.ReconciliationConfig{
			Enabled:   true,
			Interval:  time.Minute,
			Threshold: 5 * time.Minute,
			BatchSize: 10,
		},
		Cleanup: config.CleanupConfig{
			Enabled:            true,
			Schedule:           "0 3 * * *",
			QuoteRetention:     24 * time.Hour,
			OperationRetention: 90 * 24 * time.Hour,
		},
		Notification: config.NotificationConfig{Provider: "log"},
	}
}

func TestNewContainer(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	c, err := NewContainer(context.Background(), testConfig(), sqlx.NewDb(sqlDB, "sqlmock"), nil, zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, c.OperationService)
	assert.NotNil(t, c.QuoteService)
	assert.NotNil(t, c.Reconciler)
	assert.NotNil(t, c.CleanupWorker)
	assert.IsType(t, &notification.LogPublisher{}, c.Publisher)
	assert.Equal(t, []string{"dex", "lending"}, c.Upstreams.Protocols.Protocols())
}

func TestNewContainer_WorkersDisabled(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	cfg := testConfig()
	cfg.Reconciliation.Enabled = false
	cfg.Cleanup.Enabled = false

	c, err := NewContainer(context.Background(), cfg, sqlx.NewDb(sqlDB, "sqlmock"), nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c.Reconciler)
	assert.Nil(t, c.CleanupWorker)
}

func TestNewNotificationPublisher_Unknown(t *testing.T) {
	_, err := NewNotificationPublisher(context.Background(), config.NotificationConfig{Provider: "fax"}, zap.NewNop())
	assert.Error(t, err)
}

func TestAPIClientConfig(t *testing.T) {
	c := apiClientConfig("rail-bridge", config.APIConfig{
		BaseURL:           "http://bridge.test",
		APIKey:            "secret",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		MaxRetries:        4,
	})

	assert.Equal(t, "rail-bridge", c.Name)
	assert.Equal(t, "secret", c.APIKey)
	assert.Equal(t, 4, c.Retry.MaxRetries)
	assert.Equal(t, 5*time.Second, c.Retry.MaxBackoff)
	assert.NoError(t, c.Retry.Validate())
}

func TestResolveAPIKeys(t *testing.T) {
	t.Setenv("BRIDGE_TRANSPORT_API_KEY", "bt-from-env")
	t.Setenv("PROTOCOL_DEX_API_KEY", "dex-from-env")

	cfg := testConfig()
	cfg.Providers.APIKey = "explicit"

	manager, err := NewSecretsManager(context.Background(), config.SecretsConfig{Provider: "env"})
	require.NoError(t, err)
	require.NoError(t, ResolveAPIKeys(context.Background(), cfg, manager, zap.NewNop()))

	assert.Equal(t, "bt-from-env", cfg.BridgeTransport.APIKey)
	assert.Equal(t, "explicit", cfg.Providers.APIKey)
	assert.Equal(t, "dex-from-env", cfg.Protocols["Dex"].APIKey)
	assert.Empty(t, cfg.Protocols["lending"].APIKey)
}
