package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/apiclient"
	"github.com/rail-service/crosschain_orchestrator/pkg/retry"
)

type memoryCache struct {
	items map[string][]byte
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.items[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(data, dest)
}

func testConfig(url string) apiclient.Config {
	return apiclient.Config{
		BaseURL:           url,
		RequestsPerSecond: 1000,
		Retry:             retry.Policy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	}
}

func TestListActiveProviders(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/providers", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("from_chain"))

		json.NewEncoder(w).Encode(listResponse{Providers: []entities.BridgeProvider{
			{Name: "across", SupportedChains: []string{"Solana", "Ethereum"}, Active: true},
			{Name: "lifi", Active: true},
			{Name: "paused", Active: false},
			{Name: "evm-only", SupportedChains: []string{"ethereum", "arbitrum"}, Active: true},
		}})
	}))
	defer server.Close()

	cache := &memoryCache{items: map[string][]byte{}}
	dir := NewDirectory(testConfig(server.URL), cache, time.Minute, zap.NewNop())

	providers, err := dir.ListActiveProviders(context.Background(), "solana", "ethereum")
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "across", providers[0].Name)
	assert.Equal(t, "lifi", providers[1].Name)

	again, err := dir.ListActiveProviders(context.Background(), "solana", "ethereum")
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetProviderQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/providers/broken/quotes" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"route not supported"}`))
			return
		}
		assert.Equal(t, "/v1/providers/across/quotes", r.URL.Path)
		w.Write([]byte(`{"output_amount":"99.5","fees":{"bridge":"0.3","gas":"0.2"},"estimated_time":600,"confidence":80}`))
	}))
	defer server.Close()

	dir := NewDirectory(testConfig(server.URL), nil, 0, zap.NewNop())
	req := &entities.RouteQuoteRequest{FromChain: "solana", ToChain: "ethereum", Amount: decimal.NewFromInt(100)}

	quote, err := dir.GetProviderQuote(context.Background(), "across", req)
	require.NoError(t, err)
	assert.Equal(t, "across", quote.Provider)
	assert.True(t, quote.Fees.Total.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, quote.NetOutput().Equal(decimal.NewFromInt(99)))

	_, err = dir.GetProviderQuote(context.Background(), "broken", req)
	assert.ErrorContains(t, err, "route not supported")
}
