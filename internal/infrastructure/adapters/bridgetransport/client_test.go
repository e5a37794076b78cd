package bridgetransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/apiclient"
	"github.com/rail-service/crosschain_orchestrator/pkg/retry"
)

func newTestClient(url string) *Client {
	return NewClient(apiclient.Config{
		BaseURL:           url,
		RequestsPerSecond: 1000,
		Retry:             retry.Policy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	}, zap.NewNop())
}

func TestInitiateBridge(t *testing.T) {
	opID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transfers", r.URL.Path)

		var req entities.BridgeTransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, opID, req.OperationID)
		assert.True(t, req.Amount.Equal(decimal.NewFromInt(100)))

		json.NewEncoder(w).Encode(entities.BridgeTransfer{
			TransactionID: "tx-1",
			OperationHash: "0xop",
			Status:        entities.BridgeTransferStatusPending,
			Amount:        req.Amount,
			Fee:           decimal.RequireFromString("0.5"),
		})
	}))
	defer server.Close()

	transfer, err := newTestClient(server.URL).InitiateBridge(context.Background(), &entities.BridgeTransferRequest{
		OperationID: opID,
		FromChain:   "solana",
		ToChain:     "ethereum",
		Token:       "USDC",
		Amount:      decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", transfer.TransactionID)
	assert.Equal(t, entities.BridgeTransferStatusPending, transfer.Status)
	assert.True(t, transfer.Fee.Equal(decimal.RequireFromString("0.5")))
}

func TestInitiateBridge_MissingTransactionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).InitiateBridge(context.Background(), &entities.BridgeTransferRequest{})
	assert.ErrorContains(t, err, "no transaction id")
}

func TestGetBridgeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transfers/tx-9" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"unknown transfer"}`))
			return
		}
		w.Write([]byte(`{"transaction_id":"tx-9","status":"completed","output_amount":"99.5"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	transfer, err := client.GetBridgeStatus(context.Background(), "tx-9")
	require.NoError(t, err)
	assert.Equal(t, entities.BridgeTransferStatusCompleted, transfer.Status)
	assert.True(t, transfer.OutputAmount.Equal(decimal.RequireFromString("99.5")))

	_, err = client.GetBridgeStatus(context.Background(), "tx-0")
	assert.True(t, apiclient.IsNotFound(err))
}

func TestCancelBridge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/transfers/tx-1/cancel" {
			w.Write([]byte(`{"cancelled":true}`))
			return
		}
		w.Write([]byte(`{"cancelled":false,"reason":"already settled"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.CancelBridge(context.Background(), "tx-1"))
	assert.ErrorContains(t, client.CancelBridge(context.Background(), "tx-2"), "already settled")
}

func TestGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes", r.URL.Path)
		w.Write([]byte(`{"output_amount":"99","fees":{"bridge":"0.6","gas":"0.4"},"estimated_time":300,"confidence":90}`))
	}))
	defer server.Close()

	quote, err := newTestClient(server.URL).GetQuote(context.Background(), &entities.RouteQuoteRequest{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, quote.Provider)
	assert.True(t, quote.Fees.Total.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 300, quote.EstimatedTime)
}
