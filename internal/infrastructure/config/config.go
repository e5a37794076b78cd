package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestrator
type Config struct {
	Environment     string               `mapstructure:"environment"`
	LogLevel        string               `mapstructure:"log_level"`
	Server          ServerConfig         `mapstructure:"server"`
	Database        DatabaseConfig       `mapstructure:"database"`
	Redis           RedisConfig          `mapstructure:"redis"`
	BridgeTransport APIConfig            `mapstructure:"bridge_transport"`
	Providers       ProvidersConfig      `mapstructure:"providers"`
	Protocols       map[string]APIConfig `mapstructure:"protocols"`
	Quote           QuoteConfig          `mapstructure:"quote"`
	Reconciliation  ReconciliationConfig `mapstructure:"reconciliation"`
	Cleanup         CleanupConfig        `mapstructure:"cleanup"`
	Notification    NotificationConfig   `mapstructure:"notification"`
	Tracing         TracingConfig        `mapstructure:"tracing"`
	Secrets         SecretsConfig        `mapstructure:"secrets"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// APIConfig describes an upstream HTTP API
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

type ProvidersConfig struct {
	APIConfig    `mapstructure:",squash"`
	ListCacheTTL time.Duration `mapstructure:"list_cache_ttl"`
}

type QuoteConfig struct {
	TTL               time.Duration `mapstructure:"ttl"`
	MinConfidence     int           `mapstructure:"min_confidence"`
	SlippageTolerance float64       `mapstructure:"slippage_tolerance"`
}

type ReconciliationConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	Threshold      time.Duration `mapstructure:"threshold"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
}

type CleanupConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Schedule           string        `mapstructure:"schedule"`
	QuoteRetention     time.Duration `mapstructure:"quote_retention"`
	OperationRetention time.Duration `mapstructure:"operation_retention"`
}

type NotificationConfig struct {
	Provider      string `mapstructure:"provider"` // "log" or "sns"
	Region        string `mapstructure:"region"`
	TopicARN      string `mapstructure:"topic_arn"`
	PushTopicARN  string `mapstructure:"push_topic_arn"`
	SMSTopicARN   string `mapstructure:"sms_topic_arn"`
	EmailTopicARN string `mapstructure:"email_topic_arn"`
	QueueURL      string `mapstructure:"queue_url"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// SecretsConfig selects where upstream API keys are resolved when not set directly
type SecretsConfig struct {
	Provider string        `mapstructure:"provider"` // "env" or "aws"
	Region   string        `mapstructure:"region"`
	Prefix   string        `mapstructure:"prefix"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load loads configuration from .env, an optional config file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "crosschain_orchestrator")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "1h")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Upstream APIs
	viper.SetDefault("bridge_transport.base_url", "http://localhost:9100")
	viper.SetDefault("bridge_transport.timeout", "30s")
	viper.SetDefault("bridge_transport.requests_per_second", 10)
	viper.SetDefault("bridge_transport.max_retries", 3)
	viper.SetDefault("providers.base_url", "http://localhost:9200")
	viper.SetDefault("providers.timeout", "10s")
	viper.SetDefault("providers.requests_per_second", 20)
	viper.SetDefault("providers.max_retries", 1)
	viper.SetDefault("providers.list_cache_ttl", "1m")

	// Quote defaults
	viper.SetDefault("quote.ttl", "5m")
	viper.SetDefault("quote.min_confidence", 0)
	viper.SetDefault("quote.slippage_tolerance", 0.5)

	// Reconciliation defaults
	viper.SetDefault("reconciliation.enabled", true)
	viper.SetDefault("reconciliation.interval", "1m")
	viper.SetDefault("reconciliation.threshold", "5m")
	viper.SetDefault("reconciliation.batch_size", 50)
	viper.SetDefault("reconciliation.max_concurrency", 5)
	viper.SetDefault("reconciliation.lease_ttl", "10m")

	// Cleanup defaults
	viper.SetDefault("cleanup.enabled", true)
	viper.SetDefault("cleanup.schedule", "0 3 * * *")
	viper.SetDefault("cleanup.quote_retention", "24h")
	viper.SetDefault("cleanup.operation_retention", "2160h") // 90 days

	// Notification defaults
	viper.SetDefault("notification.provider", "log")
	viper.SetDefault("notification.region", "us-east-1")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.service_name", "crosschain-orchestrator")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)

	// Secrets defaults
	viper.SetDefault("secrets.provider", "env")
	viper.SetDefault("secrets.region", "us-east-1")
	viper.SetDefault("secrets.prefix", "crosschain-orchestrator/")
	viper.SetDefault("secrets.cache_ttl", "15m")
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
	}

	if key := os.Getenv("BRIDGE_TRANSPORT_API_KEY"); key != "" {
		viper.Set("bridge_transport.api_key", key)
	}
	if key := os.Getenv("PROVIDERS_API_KEY"); key != "" {
		viper.Set("providers.api_key", key)
	}

	// PROTOCOL_ENDPOINTS=dex=https://dex.internal,lending=https://lending.internal
	if endpoints := os.Getenv("PROTOCOL_ENDPOINTS"); endpoints != "" {
		for _, part := range strings.Split(endpoints, ",") {
			name, endpoint, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || name == "" || endpoint == "" {
				continue
			}
			viper.Set("protocols."+strings.ToLower(name)+".base_url", endpoint)
		}
	}

	if topic := os.Getenv("NOTIFICATION_TOPIC_ARN"); topic != "" {
		viper.Set("notification.topic_arn", topic)
		viper.Set("notification.provider", "sns")
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		viper.Set("tracing.endpoint", endpoint)
		viper.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.BridgeTransport.BaseURL == "" {
		return fmt.Errorf("bridge transport base URL is required")
	}

	if config.Quote.TTL <= 0 {
		return fmt.Errorf("quote TTL must be positive")
	}

	if config.Quote.MinConfidence < 0 || config.Quote.MinConfidence > 100 {
		return fmt.Errorf("quote min confidence must be between 0 and 100")
	}

	if config.Quote.SlippageTolerance < 0 || config.Quote.SlippageTolerance >= 100 {
		return fmt.Errorf("slippage tolerance must be in [0, 100)")
	}

	switch config.Notification.Provider {
	case "log":
	case "sns":
		if config.Notification.TopicARN == "" {
			return fmt.Errorf("notification topic ARN is required for the sns provider")
		}
	default:
		return fmt.Errorf("unknown notification provider %q", config.Notification.Provider)
	}

	switch config.Secrets.Provider {
	case "", "env", "aws":
	default:
		return fmt.Errorf("unknown secrets provider %q", config.Secrets.Provider)
	}

	if config.Reconciliation.Enabled && config.Reconciliation.Interval <= 0 {
		return fmt.Errorf("reconciliation interval must be positive")
	}

	return nil
}
