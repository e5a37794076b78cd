package bridgetransport

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/apiclient"
)

// ProviderName identifies the primary bridge transport in quotes
const ProviderName = "rail-bridge"

// Client talks to the primary bridge transport API
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

func NewClient(config apiclient.Config, logger *zap.Logger) *Client {
	if config.Name == "" {
		config.Name = "BridgeTransport"
	}
	return &Client{api: apiclient.New(config, logger), logger: logger}
}

type cancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}

// InitiateBridge submits a transfer and returns its initial state
func (c *Client) InitiateBridge(ctx context.Context, req *entities.BridgeTransferRequest) (*entities.BridgeTransfer, error) {
	var transfer entities.BridgeTransfer
	if err := c.api.Post(ctx, "/v1/transfers", req, &transfer); err != nil {
		return nil, fmt.Errorf("initiate bridge transfer: %w", err)
	}
	if transfer.TransactionID == "" {
		return nil, fmt.Errorf("initiate bridge transfer: response has no transaction id")
	}

	c.logger.Info("Bridge transfer initiated",
		zap.String("operation_id", req.OperationID.String()),
		zap.String("transaction_id", transfer.TransactionID),
		zap.String("from_chain", req.FromChain),
		zap.String("to_chain", req.ToChain),
		zap.String("amount", req.Amount.String()))
	return &transfer, nil
}

// GetBridgeStatus returns the current state of a transfer
func (c *Client) GetBridgeStatus(ctx context.Context, transactionID string) (*entities.BridgeTransfer, error) {
	var transfer entities.BridgeTransfer
	if err := c.api.Get(ctx, "/v1/transfers/"+url.PathEscape(transactionID), &transfer); err != nil {
		return nil, fmt.Errorf("get bridge status %s: %w", transactionID, err)
	}
	return &transfer, nil
}

// CancelBridge asks the transport to cancel a pending transfer
func (c *Client) CancelBridge(ctx context.Context, transactionID string) error {
	var resp cancelResponse
	if err := c.api.Post(ctx, "/v1/transfers/"+url.PathEscape(transactionID)+"/cancel", nil, &resp); err != nil {
		return fmt.Errorf("cancel bridge transfer %s: %w", transactionID, err)
	}
	if !resp.Cancelled {
		return fmt.Errorf("cancel bridge transfer %s: rejected: %s", transactionID, resp.Reason)
	}
	return nil
}

// GetQuote prices a route through the primary transport
func (c *Client) GetQuote(ctx context.Context, req *entities.RouteQuoteRequest) (*entities.ProviderQuote, error) {
	var quote entities.ProviderQuote
	if err := c.api.Post(ctx, "/v1/quotes", req, &quote); err != nil {
		return nil, fmt.Errorf("get bridge quote: %w", err)
	}
	if quote.Provider == "" {
		quote.Provider = ProviderName
	}
	if quote.Fees.Total.IsZero() {
		quote.Fees = entities.NewFees(quote.Fees.Bridge, quote.Fees.Gas, quote.Fees.Protocol)
	}
	return &quote, nil
}
