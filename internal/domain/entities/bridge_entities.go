package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BridgeTransferStatus is the settlement state reported by the bridge transport
type BridgeTransferStatus string

const (
	BridgeTransferStatusPending   BridgeTransferStatus = "pending"
	BridgeTransferStatusCompleted BridgeTransferStatus = "completed"
	BridgeTransferStatusFailed    BridgeTransferStatus = "failed"
	BridgeTransferStatusCancelled BridgeTransferStatus = "cancelled"
)

// IsFailure returns true when the transfer will never settle
func (s BridgeTransferStatus) IsFailure() bool {
	return s == BridgeTransferStatusFailed || s == BridgeTransferStatusCancelled
}

// BridgeTransferRequest asks the bridge transport to move funds between chains
type BridgeTransferRequest struct {
	OperationID uuid.UUID       `json:"operation_id"`
	UserID      uuid.UUID       `json:"user_id"`
	FromChain   string          `json:"from_chain"`
	ToChain     string          `json:"to_chain"`
	Token       string          `json:"token"`
	Amount      decimal.Decimal `json:"amount"`
}

// BridgeTransfer is the bridge transport's view of a transfer
type BridgeTransfer struct {
	TransactionID   string               `json:"transaction_id"`
	OperationHash   string               `json:"operation_hash,omitempty"`
	TransactionHash string               `json:"transaction_hash,omitempty"`
	Status          BridgeTransferStatus `json:"status"`
	FromChain       string               `json:"from_chain"`
	ToChain         string               `json:"to_chain"`
	Token           string               `json:"token"`
	Amount          decimal.Decimal      `json:"amount"`
	OutputAmount    decimal.Decimal      `json:"output_amount"`
	Fee             decimal.Decimal      `json:"fee"`
	BlockNumber     *int64               `json:"block_number,omitempty"`
	Confirmations   *int                 `json:"confirmations,omitempty"`
	ErrorMessage    string               `json:"error_message,omitempty"`
}

// RouteQuoteRequest asks a provider to price a route
type RouteQuoteRequest struct {
	UserID        uuid.UUID       `json:"user_id"`
	FromChain     string          `json:"from_chain"`
	ToChain       string          `json:"to_chain"`
	FromToken     string          `json:"from_token"`
	ToToken       string          `json:"to_token"`
	Amount        decimal.Decimal `json:"amount"`
	OperationType OperationType   `json:"operation_type"`
}

// ProviderQuote is one provider's raw price for a route
type ProviderQuote struct {
	Provider      string          `json:"provider"`
	OutputAmount  decimal.Decimal `json:"output_amount"`
	Fees          Fees            `json:"fees"`
	EstimatedTime int             `json:"estimated_time"`
	Confidence    int             `json:"confidence"`
	PriceImpact   decimal.Decimal `json:"price_impact"`
}

// NetOutput returns output minus total fees
func (p ProviderQuote) NetOutput() decimal.Decimal {
	return p.OutputAmount.Sub(p.Fees.Total)
}

// BridgeProvider is an alternative route provider listed by the provider directory
type BridgeProvider struct {
	Name            string   `json:"name"`
	SupportedChains []string `json:"supported_chains"`
	Active          bool     `json:"active"`
}

// ProtocolActionRequest asks a protocol adapter to execute an action on the target chain
type ProtocolActionRequest struct {
	OperationID uuid.UUID              `json:"operation_id"`
	UserID      uuid.UUID              `json:"user_id"`
	Chain       string                 `json:"chain"`
	Protocol    string                 `json:"protocol"`
	Action      string                 `json:"action"`
	Token       string                 `json:"token"`
	Amount      decimal.Decimal        `json:"amount"`
	OutputToken string                 `json:"output_token,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ProtocolActionResult is the on-chain outcome of a protocol action
type ProtocolActionResult struct {
	TransactionHash string          `json:"transaction_hash"`
	BlockNumber     *int64          `json:"block_number,omitempty"`
	OutputToken     string          `json:"output_token"`
	OutputAmount    decimal.Decimal `json:"output_amount"`
	GasUsed         decimal.Decimal `json:"gas_used"`
	GasCost         decimal.Decimal `json:"gas_cost"`
}
