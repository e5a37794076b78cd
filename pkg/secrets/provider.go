package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrSecretNotFound is returned when a provider has no value for a key
var ErrSecretNotFound = errors.New("secret not found")

type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// EnvProvider reads secrets from environment variables; keys are upper-cased
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	value := os.Getenv(strings.ToUpper(key))
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return value, nil
}

type CachedProvider struct {
	provider Provider
	mu       sync.RWMutex
	cache    map[string]cachedSecret
	ttl      time.Duration
	now      func() time.Time
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewCachedProvider(provider Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    make(map[string]cachedSecret),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (p *CachedProvider) GetSecret(ctx context.Context, key string) (string, error) {
	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && p.now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	value, err := p.provider.GetSecret(ctx, key)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cache[key] = cachedSecret{value: value, expiresAt: p.now().Add(p.ttl)}
	p.mu.Unlock()
	return value, nil
}

// Manager names the secrets the orchestrator consumes
type Manager struct {
	provider Provider
}

func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider}
}

func (m *Manager) GetBridgeTransportAPIKey(ctx context.Context) (string, error) {
	return m.provider.GetSecret(ctx, "bridge_transport_api_key")
}

func (m *Manager) GetProvidersAPIKey(ctx context.Context) (string, error) {
	return m.provider.GetSecret(ctx, "providers_api_key")
}

// GetProtocolAPIKey returns the key for a protocol adapter, e.g. protocol_dex_api_key
func (m *Manager) GetProtocolAPIKey(ctx context.Context, protocol string) (string, error) {
	return m.provider.GetSecret(ctx, "protocol_"+strings.ToLower(protocol)+"_api_key")
}

func (m *Manager) GetDatabasePassword(ctx context.Context) (string, error) {
	return m.provider.GetSecret(ctx, "database_password")
}
