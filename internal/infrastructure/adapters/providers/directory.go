package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/apiclient"
)

const defaultListTTL = time.Minute

// Cache stores provider listings between quote requests
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// Directory lists alternative route providers and fetches their quotes from the aggregator API
type Directory struct {
	api     *apiclient.Client
	cache   Cache
	listTTL time.Duration
	logger  *zap.Logger
}

// NewDirectory creates a provider directory; cache may be nil
func NewDirectory(config apiclient.Config, cache Cache, listTTL time.Duration, logger *zap.Logger) *Directory {
	if config.Name == "" {
		config.Name = "ProviderDirectory"
	}
	if listTTL <= 0 {
		listTTL = defaultListTTL
	}
	return &Directory{
		api:     apiclient.New(config, logger),
		cache:   cache,
		listTTL: listTTL,
		logger:  logger,
	}
}

type listResponse struct {
	Providers []entities.BridgeProvider `json:"providers"`
}

// ListActiveProviders returns active providers that serve both chains
func (d *Directory) ListActiveProviders(ctx context.Context, fromChain, toChain string) ([]entities.BridgeProvider, error) {
	key := fmt.Sprintf("providers:%s:%s", strings.ToLower(fromChain), strings.ToLower(toChain))

	var cached []entities.BridgeProvider
	if d.cache != nil && d.cache.Get(ctx, key, &cached) == nil {
		return cached, nil
	}

	query := url.Values{}
	query.Set("from_chain", fromChain)
	query.Set("to_chain", toChain)

	var resp listResponse
	if err := d.api.Get(ctx, "/v1/providers?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	active := make([]entities.BridgeProvider, 0, len(resp.Providers))
	for _, p := range resp.Providers {
		if p.Active && supports(p, fromChain) && supports(p, toChain) {
			active = append(active, p)
		}
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, active, d.listTTL); err != nil {
			d.logger.Warn("Failed to cache provider list", zap.String("key", key), zap.Error(err))
		}
	}
	return active, nil
}

// GetProviderQuote asks a single provider to price a route
func (d *Directory) GetProviderQuote(ctx context.Context, provider string, req *entities.RouteQuoteRequest) (*entities.ProviderQuote, error) {
	var quote entities.ProviderQuote
	path := "/v1/providers/" + url.PathEscape(provider) + "/quotes"
	if err := d.api.Post(ctx, path, req, &quote); err != nil {
		return nil, fmt.Errorf("quote from %s: %w", provider, err)
	}
	quote.Provider = provider
	if quote.Fees.Total.IsZero() {
		quote.Fees = entities.NewFees(quote.Fees.Bridge, quote.Fees.Gas, quote.Fees.Protocol)
	}
	return &quote, nil
}

// supports treats an empty chain list as "all chains"
func supports(p entities.BridgeProvider, chain string) bool {
	if len(p.SupportedChains) == 0 {
		return true
	}
	for _, c := range p.SupportedChains {
		if strings.EqualFold(c, chain) {
			return true
		}
	}
	return false
}
