package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres://postgres:@localhost:5432/crosschain_orchestrator?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 5*time.Minute, cfg.Quote.TTL)
	assert.Equal(t, 0.5, cfg.Quote.SlippageTolerance)
	assert.Equal(t, time.Minute, cfg.Reconciliation.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Reconciliation.Threshold)
	assert.Equal(t, "0 3 * * *", cfg.Cleanup.Schedule)
	assert.Equal(t, "log", cfg.Notification.Provider)
	assert.Equal(t, time.Minute, cfg.Providers.ListCacheTTL)
	assert.Equal(t, "env", cfg.Secrets.Provider)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://orchestrator@db:5432/orchestrator")
	t.Setenv("PROTOCOL_ENDPOINTS", "DEX=https://dex.internal, lending=https://lending.internal,broken")
	t.Setenv("NOTIFICATION_TOPIC_ARN", "arn:aws:sns:us-east-1:123456789012:operations")
	t.Setenv("QUOTE_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://orchestrator@db:5432/orchestrator", cfg.Database.URL)
	assert.Equal(t, 2*time.Minute, cfg.Quote.TTL)
	assert.Equal(t, "sns", cfg.Notification.Provider)
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:operations", cfg.Notification.TopicARN)

	require.Len(t, cfg.Protocols, 2)
	assert.Equal(t, "https://dex.internal", cfg.Protocols["dex"].BaseURL)
	assert.Equal(t, "https://lending.internal", cfg.Protocols["lending"].BaseURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:        DatabaseConfig{URL: "postgres://localhost/db"},
			BridgeTransport: APIConfig{BaseURL: "http://bridge"},
			Quote:           QuoteConfig{TTL: time.Minute, MinConfidence: 50, SlippageTolerance: 0.5},
			Notification:    NotificationConfig{Provider: "log"},
		}
	}

	require.NoError(t, validate(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bridge url", func(c *Config) { c.BridgeTransport.BaseURL = "" }},
		{"zero quote ttl", func(c *Config) { c.Quote.TTL = 0 }},
		{"confidence over 100", func(c *Config) { c.Quote.MinConfidence = 101 }},
		{"slippage of 100 percent", func(c *Config) { c.Quote.SlippageTolerance = 100 }},
		{"sns without topic", func(c *Config) { c.Notification.Provider = "sns" }},
		{"unknown notifier", func(c *Config) { c.Notification.Provider = "pigeon" }},
		{"unknown secrets provider", func(c *Config) { c.Secrets.Provider = "vault" }},
		{"reconciliation without interval", func(c *Config) { c.Reconciliation.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}
