package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
)

// Fees is the fee breakdown of a route
type Fees struct {
	Bridge   decimal.Decimal `json:"bridge"`
	Gas      decimal.Decimal `json:"gas"`
	Protocol decimal.Decimal `json:"protocol"`
	Total    decimal.Decimal `json:"total"`
}

// NewFees builds a fee breakdown whose total is the sum of its parts
func NewFees(bridge, gas, protocol decimal.Decimal) Fees {
	return Fees{
		Bridge:   bridge,
		Gas:      gas,
		Protocol: protocol,
		Total:    bridge.Add(gas).Add(protocol),
	}
}

// RouteStep is one protocol hop of a route
type RouteStep struct {
	Protocol      string          `json:"protocol"`
	Action        string          `json:"action"`
	FromToken     string          `json:"from_token"`
	ToToken       string          `json:"to_token"`
	EstimatedGas  decimal.Decimal `json:"estimated_gas"`
	EstimatedTime int             `json:"estimated_time"`
}

// Route is a provider's proposed execution plan
type Route struct {
	Provider        string          `json:"provider"`
	Steps           []RouteStep     `json:"steps"`
	EstimatedOutput decimal.Decimal `json:"estimated_output"`
	MinimumReceived decimal.Decimal `json:"minimum_received"`
	PriceImpact     decimal.Decimal `json:"price_impact"`
	Fees            Fees            `json:"fees"`
	EstimatedTime   int             `json:"estimated_time"`
	Confidence      int             `json:"confidence"`
}

// NetOutput returns estimated output minus total fees
func (r Route) NetOutput() decimal.Decimal {
	return r.EstimatedOutput.Sub(r.Fees.Total)
}

// AlternativeRoute is a competing route offered by another provider
type AlternativeRoute struct {
	Provider      string          `json:"provider"`
	OutputAmount  decimal.Decimal `json:"output_amount"`
	EstimatedTime int             `json:"estimated_time"`
	Fees          Fees            `json:"fees"`
	Confidence    int             `json:"confidence"`
	Advantages    []string        `json:"advantages"`
	Disadvantages []string        `json:"disadvantages"`
}

// RoutePriority selects how RecommendedRoute ranks alternatives
type RoutePriority string

const (
	RoutePrioritySpeed    RoutePriority = "speed"
	RoutePriorityCost     RoutePriority = "cost"
	RoutePriorityBalanced RoutePriority = "balanced"
)

// RoutePreferences filters and ranks alternatives
type RoutePreferences struct {
	Priority      RoutePriority
	MinConfidence int
}

// Quote is a priced, time-boxed proposal for an operation
type Quote struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	UserID        uuid.UUID         `json:"user_id" db:"user_id"`
	FromChain     string            `json:"from_chain" db:"from_chain"`
	ToChain       string            `json:"to_chain" db:"to_chain"`
	FromToken     string            `json:"from_token" db:"from_token"`
	ToToken       string            `json:"to_token" db:"to_token"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	OperationType OperationType     `json:"operation_type" db:"operation_type"`
	Route         Route             `json:"route" db:"route"`
	Alternatives  AlternativeRoutes `json:"alternatives" db:"alternatives"`
	ExpiresAt     time.Time         `json:"expires_at" db:"expires_at"`
	IsExecuted    bool              `json:"is_executed" db:"is_executed"`
	ExecutedAt    *time.Time        `json:"executed_at,omitempty" db:"executed_at"`
	OperationID   *uuid.UUID        `json:"operation_id,omitempty" db:"operation_id"`
	Metadata      JSONMap           `json:"metadata" db:"metadata"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// NewQuoteParams holds the inputs of a new quote
type NewQuoteParams struct {
	UserID        uuid.UUID
	FromChain     string
	ToChain       string
	FromToken     string
	ToToken       string
	Amount        string
	OperationType OperationType
	Route         Route
	Alternatives  []AlternativeRoute
	ExpiresAt     time.Time
	Metadata      map[string]interface{}
}

// NewQuote validates params and builds an unexecuted quote
func NewQuote(params NewQuoteParams) (*Quote, error) {
	if params.UserID == uuid.Nil {
		return nil, domainerrors.ValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(params.FromChain) == "" || strings.TrimSpace(params.ToChain) == "" {
		return nil, domainerrors.ValidationError("chain", "from and to chain are required")
	}
	if strings.TrimSpace(params.FromToken) == "" {
		return nil, domainerrors.ValidationError("from_token", "from token is required")
	}
	if params.OperationType != "" && !params.OperationType.IsValid() {
		return nil, domainerrors.ValidationError("operation_type", "unknown operation type: "+string(params.OperationType))
	}
	amount, err := parsePositiveAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Route.Provider) == "" {
		return nil, domainerrors.ValidationError("route", "route provider is required")
	}
	if len(params.Route.Steps) == 0 {
		return nil, domainerrors.ValidationError("route", "route must contain at least one step")
	}
	for _, alt := range params.Alternatives {
		if strings.TrimSpace(alt.Provider) == "" {
			return nil, domainerrors.ValidationError("alternatives", "alternative route provider is required")
		}
	}

	now := nowFunc()
	if !params.ExpiresAt.After(now) {
		return nil, domainerrors.ValidationError("expires_at", "expiry must be in the future")
	}

	alternatives := make(AlternativeRoutes, len(params.Alternatives))
	copy(alternatives, params.Alternatives)
	metadata := JSONMap{}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	return &Quote{
		ID:            uuid.New(),
		UserID:        params.UserID,
		FromChain:     params.FromChain,
		ToChain:       params.ToChain,
		FromToken:     params.FromToken,
		ToToken:       params.ToToken,
		Amount:        amount,
		OperationType: params.OperationType,
		Route:         params.Route,
		Alternatives:  alternatives,
		ExpiresAt:     params.ExpiresAt,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsExpired reports whether the expiry instant has been reached
func (q *Quote) IsExpired() bool {
	return !nowFunc().Before(q.ExpiresAt)
}

// TimeToExpiry returns the time left before expiry, never negative
func (q *Quote) TimeToExpiry() time.Duration {
	remaining := q.ExpiresAt.Sub(nowFunc())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BestAlternative returns the alternative with the highest output
func (q *Quote) BestAlternative() *AlternativeRoute {
	return q.pickAlternative(q.Alternatives, func(candidate, best *AlternativeRoute) bool {
		return candidate.OutputAmount.GreaterThan(best.OutputAmount)
	})
}

// FastestRoute returns the alternative with the lowest estimated time
func (q *Quote) FastestRoute() *AlternativeRoute {
	return q.pickAlternative(q.Alternatives, func(candidate, best *AlternativeRoute) bool {
		return candidate.EstimatedTime < best.EstimatedTime
	})
}

// CheapestRoute returns the alternative with the lowest total fees
func (q *Quote) CheapestRoute() *AlternativeRoute {
	return q.pickAlternative(q.Alternatives, func(candidate, best *AlternativeRoute) bool {
		return candidate.Fees.Total.LessThan(best.Fees.Total)
	})
}

// RecommendedRoute filters alternatives by confidence and ranks them by priority
func (q *Quote) RecommendedRoute(prefs RoutePreferences) *AlternativeRoute {
	eligible := make([]AlternativeRoute, 0, len(q.Alternatives))
	for _, alt := range q.Alternatives {
		if alt.Confidence >= prefs.MinConfidence {
			eligible = append(eligible, alt)
		}
	}

	switch prefs.Priority {
	case RoutePrioritySpeed:
		return q.pickAlternative(eligible, func(candidate, best *AlternativeRoute) bool {
			return candidate.EstimatedTime < best.EstimatedTime
		})
	case RoutePriorityCost:
		return q.pickAlternative(eligible, func(candidate, best *AlternativeRoute) bool {
			return candidate.Fees.Total.LessThan(best.Fees.Total)
		})
	default:
		return q.pickAlternative(eligible, func(candidate, best *AlternativeRoute) bool {
			return outputConfidenceScore(candidate).GreaterThan(outputConfidenceScore(best))
		})
	}
}

func outputConfidenceScore(route *AlternativeRoute) decimal.Decimal {
	return route.OutputAmount.Mul(decimal.NewFromInt(int64(route.Confidence)))
}

// pickAlternative is a strict reduction: better must hold strictly for a later route to win
func (q *Quote) pickAlternative(routes []AlternativeRoute, better func(candidate, best *AlternativeRoute) bool) *AlternativeRoute {
	if len(routes) == 0 {
		return nil
	}
	best := routes[0]
	for i := 1; i < len(routes); i++ {
		if better(&routes[i], &best) {
			best = routes[i]
		}
	}
	return &best
}

// EstimatedSlippage returns (amount - minimum received) / amount * 100
func (q *Quote) EstimatedSlippage() decimal.Decimal {
	if q.Amount.IsZero() {
		return decimal.Zero
	}
	return q.Amount.Sub(q.Route.MinimumReceived).Div(q.Amount).Mul(decimal.NewFromInt(100))
}

// Execute marks the quote executed and links the resulting operation
func (q *Quote) Execute(operationID uuid.UUID) error {
	if q.IsExecuted {
		return domainerrors.InvalidStateError("quote", "quote already executed")
	}
	if q.IsExpired() {
		return domainerrors.InvalidStateError("quote", "quote has expired")
	}
	now := nowFunc()
	q.IsExecuted = true
	q.ExecutedAt = &now
	q.OperationID = &operationID
	q.UpdatedAt = now
	return nil
}

// Expire pulls the expiry to now. Executed or already expired quotes are left untouched.
func (q *Quote) Expire() {
	if q.IsExecuted {
		return
	}
	now := nowFunc()
	if q.ExpiresAt.After(now) {
		q.ExpiresAt = now
		q.UpdatedAt = now
	}
}

// SetMetadata annotates the quote
func (q *Quote) SetMetadata(key string, value interface{}) {
	if q.Metadata == nil {
		q.Metadata = JSONMap{}
	}
	q.Metadata[key] = value
	q.UpdatedAt = nowFunc()
}

// IsOwnedBy reports whether userID owns the quote
func (q *Quote) IsOwnedBy(userID uuid.UUID) bool {
	return q.UserID == userID
}
