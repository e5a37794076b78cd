package entities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validQuoteParams(now time.Time) NewQuoteParams {
	return NewQuoteParams{
		UserID:        uuid.New(),
		FromChain:     "ton",
		ToChain:       "ethereum",
		FromToken:     "USDT",
		ToToken:       "USDC",
		Amount:        "100",
		OperationType: OperationTypeCrossChainSwap,
		Route: Route{
			Provider:        "primary",
			Steps:           []RouteStep{{Protocol: "bridge", Action: "bridge", FromToken: "USDT", ToToken: "USDT"}},
			EstimatedOutput: dec("99"),
			MinimumReceived: dec("98"),
			Fees:            NewFees(dec("0.5"), dec("0.3"), dec("0.2")),
			EstimatedTime:   300,
			Confidence:      90,
		},
		Alternatives: []AlternativeRoute{
			{Provider: "alpha", OutputAmount: dec("98"), EstimatedTime: 120, Fees: Fees{Total: dec("2")}, Confidence: 70},
			{Provider: "beta", OutputAmount: dec("99.5"), EstimatedTime: 600, Fees: Fees{Total: dec("1")}, Confidence: 95},
			{Provider: "gamma", OutputAmount: dec("99.5"), EstimatedTime: 120, Fees: Fees{Total: dec("1")}, Confidence: 60},
		},
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestNewQuote_Validation(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	withClock(t, now)

	tests := []struct {
		name   string
		mutate func(p *NewQuoteParams)
	}{
		{"missing user", func(p *NewQuoteParams) { p.UserID = uuid.Nil }},
		{"zero amount", func(p *NewQuoteParams) { p.Amount = "0" }},
		{"unparseable amount", func(p *NewQuoteParams) { p.Amount = "lots" }},
		{"route without steps", func(p *NewQuoteParams) { p.Route.Steps = nil }},
		{"alternative without provider", func(p *NewQuoteParams) { p.Alternatives[0].Provider = "" }},
		{"expiry in the past", func(p *NewQuoteParams) { p.ExpiresAt = now.Add(-time.Second) }},
		{"expiry exactly now", func(p *NewQuoteParams) { p.ExpiresAt = now }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validQuoteParams(now)
			tt.mutate(&params)
			q, err := NewQuote(params)
			require.Error(t, err)
			assert.Nil(t, q)
			assert.True(t, domainerrors.IsInvalidInput(err))
		})
	}

	t.Run("nil alternatives are empty", func(t *testing.T) {
		params := validQuoteParams(now)
		params.Alternatives = nil
		q, err := NewQuote(params)
		require.NoError(t, err)
		assert.NotNil(t, q.Alternatives)
		assert.Empty(t, q.Alternatives)
		assert.Nil(t, q.BestAlternative())
	})
}

func TestQuote_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := withClock(t, now)

	q, err := NewQuote(validQuoteParams(now))
	require.NoError(t, err)
	assert.False(t, q.IsExpired())
	assert.Equal(t, 5*time.Minute, q.TimeToExpiry())

	*clock = q.ExpiresAt.Add(-time.Nanosecond)
	assert.False(t, q.IsExpired())

	// the expiry instant itself counts as expired
	*clock = q.ExpiresAt
	assert.True(t, q.IsExpired())
	assert.Equal(t, time.Duration(0), q.TimeToExpiry())

	*clock = now.Add(6 * time.Minute)
	assert.True(t, q.IsExpired())
	assert.Equal(t, time.Duration(0), q.TimeToExpiry())

	err = q.Execute(uuid.New())
	assert.True(t, domainerrors.IsInvalidState(err))
	assert.False(t, q.IsExecuted)
}

func TestQuote_ExecuteOnce(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	withClock(t, now)

	q, err := NewQuote(validQuoteParams(now))
	require.NoError(t, err)

	opID := uuid.New()
	require.NoError(t, q.Execute(opID))
	assert.True(t, q.IsExecuted)
	assert.Equal(t, opID, *q.OperationID)
	require.NotNil(t, q.ExecutedAt)

	err = q.Execute(uuid.New())
	assert.True(t, domainerrors.IsInvalidState(err))
	assert.Equal(t, opID, *q.OperationID)

	expiresAt := q.ExpiresAt
	q.Expire()
	assert.Equal(t, expiresAt, q.ExpiresAt)
}

func TestQuote_ExpireIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := withClock(t, now)

	q, err := NewQuote(validQuoteParams(now))
	require.NoError(t, err)

	q.Expire()
	assert.True(t, q.IsExpired())
	assert.Equal(t, now, q.ExpiresAt)

	*clock = now.Add(time.Minute)
	q.Expire()
	assert.Equal(t, now, q.ExpiresAt)
}

func TestQuote_RouteSelection(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	withClock(t, now)

	q, err := NewQuote(validQuoteParams(now))
	require.NoError(t, err)

	// beta and gamma tie on output, alpha and gamma tie on time, beta and gamma tie on fees
	assert.Equal(t, "beta", q.BestAlternative().Provider)
	assert.Equal(t, "alpha", q.FastestRoute().Provider)
	assert.Equal(t, "beta", q.CheapestRoute().Provider)

	assert.Equal(t, "beta", q.RecommendedRoute(RoutePreferences{}).Provider)
	assert.Equal(t, "alpha", q.RecommendedRoute(RoutePreferences{Priority: RoutePrioritySpeed}).Provider)
	assert.Equal(t, "alpha", q.RecommendedRoute(RoutePreferences{Priority: RoutePrioritySpeed, MinConfidence: 65}).Provider)
	assert.Equal(t, "beta", q.RecommendedRoute(RoutePreferences{Priority: RoutePriorityCost, MinConfidence: 80}).Provider)
	assert.Nil(t, q.RecommendedRoute(RoutePreferences{MinConfidence: 99}))
}

func TestQuote_EstimatedSlippage(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	withClock(t, now)

	q, err := NewQuote(validQuoteParams(now))
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(q.EstimatedSlippage()), q.EstimatedSlippage().String())
	assert.True(t, dec("98").Equal(q.Route.NetOutput()))
}
