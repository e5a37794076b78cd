package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_orchestrator/internal/domain/errors"
	"github.com/rail-service/crosschain_orchestrator/internal/domain/repositories"
)

const (
	defaultQuoteTTL   = 5 * time.Minute
	defaultQuoteLimit = 20
	maxQuoteLimit     = 100
)

// PrimaryQuoter prices a route through the primary bridge transport
type PrimaryQuoter interface {
	GetQuote(ctx context.Context, req *entities.RouteQuoteRequest) (*entities.ProviderQuote, error)
}

// ProviderDirectory lists alternative route providers and fetches their quotes
type ProviderDirectory interface {
	ListActiveProviders(ctx context.Context, fromChain, toChain string) ([]entities.BridgeProvider, error)
	GetProviderQuote(ctx context.Context, provider string, req *entities.RouteQuoteRequest) (*entities.ProviderQuote, error)
}

// OperationCreator creates the operation an executed quote turns into
type OperationCreator interface {
	CreateOperation(ctx context.Context, params entities.NewOperationParams) (*entities.Operation, error)
}

// AnalyticsRecorder records quote events
type AnalyticsRecorder interface {
	RecordQuoteGenerated(ctx context.Context, quote *entities.Quote) error
}

// Config tunes quote generation
type Config struct {
	TTL time.Duration
	// MinConfidence drops alternatives below this confidence
	MinConfidence int
}

// GenerateQuoteRequest is a request for a priced route
type GenerateQuoteRequest struct {
	UserID        uuid.UUID              `json:"user_id"`
	FromChain     string                 `json:"from_chain"`
	ToChain       string                 `json:"to_chain"`
	FromToken     string                 `json:"from_token"`
	ToToken       string                 `json:"to_token"`
	Amount        string                 `json:"amount"`
	OperationType entities.OperationType `json:"operation_type,omitempty"`
}

// GenerateQuoteResult is a persisted quote together with its comparison
type GenerateQuoteResult struct {
	Quote            *entities.Quote             `json:"quote"`
	Alternatives     []entities.AlternativeRoute `json:"alternatives"`
	EstimatedSavings decimal.Decimal             `json:"estimated_savings"`
	Comparison       *RouteComparison            `json:"comparison"`
}

// Recommendation tags for provider comparison
const (
	RecommendationBestPrice    = "best_price"
	RecommendationFastest      = "fastest"
	RecommendationMostReliable = "most_reliable"
	RecommendationBalanced     = "balanced"
)

// ProviderComparison describes one provider against all others
type ProviderComparison struct {
	Provider       string                 `json:"provider"`
	Quote          entities.ProviderQuote `json:"quote"`
	NetOutput      decimal.Decimal        `json:"net_output"`
	Pros           []string               `json:"pros"`
	Cons           []string               `json:"cons"`
	Recommendation string                 `json:"recommendation"`
}

// Service generates, compares and executes quotes
type Service struct {
	repo       repositories.QuoteRepository
	primary    PrimaryQuoter
	directory  ProviderDirectory
	pricer     RoutePricer
	operations OperationCreator
	analytics  AnalyticsRecorder
	config     Config
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService creates a new quote service
func NewService(
	repo repositories.QuoteRepository,
	primary PrimaryQuoter,
	directory ProviderDirectory,
	pricer RoutePricer,
	operations OperationCreator,
	analytics AnalyticsRecorder,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.TTL <= 0 {
		config.TTL = defaultQuoteTTL
	}
	if pricer == nil {
		pricer = NewDefaultPricer(decimal.RequireFromString("0.5"))
	}
	return &Service{
		repo:       repo,
		primary:    primary,
		directory:  directory,
		pricer:     pricer,
		operations: operations,
		analytics:  analytics,
		config:     config,
		logger:     logger,
		tracer:     otel.Tracer("quote-service"),
	}
}

// GenerateQuote prices the request through the primary transport and every active alternative provider
// concurrently. Provider failures are logged and excluded; only zero usable routes is an error.
func (s *Service) GenerateQuote(ctx context.Context, req *GenerateQuoteRequest) (*GenerateQuoteResult, error) {
	ctx, span := s.tracer.Start(ctx, "quote.generate", trace.WithAttributes(
		attribute.String("from_chain", req.FromChain),
		attribute.String("to_chain", req.ToChain),
		attribute.String("operation_type", string(req.OperationType)),
	))
	defer span.End()

	routeReq, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	primaryQuote, altQuotes := s.collectQuotes(ctx, routeReq)

	// the first successful alternative stands in for a failed primary
	if primaryQuote == nil {
		for i, q := range altQuotes {
			if q != nil {
				primaryQuote = q
				altQuotes = append(altQuotes[:i:i], altQuotes[i+1:]...)
				s.logger.Warn("Primary quote unavailable, promoting alternative",
					zap.String("provider", q.Provider))
				break
			}
		}
	}
	if primaryQuote == nil {
		err := domainerrors.ServiceUnavailableError("quote", fmt.Errorf("no provider returned a usable route"))
		span.RecordError(err)
		return nil, err
	}

	steps, err := routeSteps(routeReq, primaryQuote.Provider)
	if err != nil {
		return nil, err
	}
	route := s.pricer.BuildRoute(routeReq, primaryQuote, steps)

	alternatives := make([]entities.AlternativeRoute, 0, len(altQuotes))
	for _, q := range altQuotes {
		if q == nil || q.Confidence < s.config.MinConfidence {
			continue
		}
		alternatives = append(alternatives, s.pricer.DescribeAlternative(route, q))
	}

	quote, err := entities.NewQuote(entities.NewQuoteParams{
		UserID:        req.UserID,
		FromChain:     req.FromChain,
		ToChain:       req.ToChain,
		FromToken:     req.FromToken,
		ToToken:       req.ToToken,
		Amount:        req.Amount,
		OperationType: req.OperationType,
		Route:         route,
		Alternatives:  alternatives,
		ExpiresAt:     time.Now().Add(s.config.TTL),
		Metadata: map[string]interface{}{
			"providers_quoted": len(alternatives) + 1,
		},
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]RouteCandidate, 0, len(alternatives)+1)
	candidates = append(candidates, candidateFromRoute(route))
	for _, alt := range alternatives {
		candidates = append(candidates, candidateFromAlternative(alt))
	}
	comparison := CompareRoutes(candidates)

	savings := comparison.Cheapest.NetOutput().Sub(route.NetOutput())
	if savings.IsNegative() {
		savings = decimal.Zero
	}
	quote.SetMetadata("recommended_provider", comparison.Balanced.Provider)

	if err := s.repo.Create(ctx, quote); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create quote: %w", err)
	}

	span.SetAttributes(
		attribute.String("quote_id", quote.ID.String()),
		attribute.String("provider", route.Provider),
		attribute.Int("alternatives", len(alternatives)),
	)
	s.logger.Info("Quote generated",
		zap.String("quote_id", quote.ID.String()),
		zap.String("user_id", quote.UserID.String()),
		zap.String("provider", route.Provider),
		zap.String("estimated_output", route.EstimatedOutput.String()),
		zap.Int("alternatives", len(alternatives)),
		zap.String("estimated_savings", savings.String()))

	if s.analytics != nil {
		if err := s.analytics.RecordQuoteGenerated(ctx, quote); err != nil {
			s.logger.Warn("Failed to record quote generated", zap.String("quote_id", quote.ID.String()), zap.Error(err))
		}
	}

	return &GenerateQuoteResult{
		Quote:            quote,
		Alternatives:     alternatives,
		EstimatedSavings: savings,
		Comparison:       comparison,
	}, nil
}

func (s *Service) validateRequest(req *GenerateQuoteRequest) (*entities.RouteQuoteRequest, error) {
	if req.UserID == uuid.Nil {
		return nil, domainerrors.ValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(req.FromChain) == "" || strings.TrimSpace(req.ToChain) == "" {
		return nil, domainerrors.ValidationError("chain", "from and to chain are required")
	}
	if strings.TrimSpace(req.FromToken) == "" {
		return nil, domainerrors.ValidationError("from_token", "from token is required")
	}
	if req.OperationType != "" && !req.OperationType.IsValid() {
		return nil, domainerrors.UnsupportedOperationTypeError(string(req.OperationType))
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return nil, domainerrors.ValidationError("amount", "amount must be a positive decimal number")
	}

	return &entities.RouteQuoteRequest{
		UserID:        req.UserID,
		FromChain:     req.FromChain,
		ToChain:       req.ToChain,
		FromToken:     req.FromToken,
		ToToken:       req.ToToken,
		Amount:        amount,
		OperationType: req.OperationType,
	}, nil
}

// collectQuotes fans out to the primary transport and every active provider.
// Alternative results keep provider listing order; failed providers leave a nil slot.
func (s *Service) collectQuotes(ctx context.Context, req *entities.RouteQuoteRequest) (*entities.ProviderQuote, []*entities.ProviderQuote) {
	var providers []entities.BridgeProvider
	if s.directory != nil {
		listed, err := s.directory.ListActiveProviders(ctx, req.FromChain, req.ToChain)
		if err != nil {
			s.logger.Warn("Failed to list alternative providers", zap.Error(err))
		}
		providers = listed
	}

	var primary *entities.ProviderQuote
	alternatives := make([]*entities.ProviderQuote, len(providers))

	// a plain Group: one provider failing must not cancel its siblings
	var g errgroup.Group
	g.Go(func() error {
		q, err := s.primary.GetQuote(ctx, req)
		if err != nil {
			s.logger.Warn("Primary quote failed", zap.Error(err))
			return nil
		}
		primary = q
		return nil
	})
	for i, provider := range providers {
		i, provider := i, provider
		g.Go(func() error {
			q, err := s.directory.GetProviderQuote(ctx, provider.Name, req)
			if err != nil {
				s.logger.Warn("Provider quote failed",
					zap.String("provider", provider.Name),
					zap.Error(err))
				return nil
			}
			if q.Provider == "" {
				q.Provider = provider.Name
			}
			alternatives[i] = q
			return nil
		})
	}
	_ = g.Wait()

	return primary, alternatives
}

// GetQuote retrieves a quote by ID
func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (*entities.Quote, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUserQuotes lists a user's quotes newest first
func (s *Service) GetUserQuotes(ctx context.Context, userID uuid.UUID, includeExpired bool, limit int) ([]*entities.Quote, error) {
	if limit <= 0 {
		limit = defaultQuoteLimit
	}
	if limit > maxQuoteLimit {
		limit = maxQuoteLimit
	}
	quotes, err := s.repo.ListByUser(ctx, userID, includeExpired, limit)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}

// RefreshQuote regenerates an unexecuted quote with the same parameters and expires the old one
func (s *Service) RefreshQuote(ctx context.Context, id uuid.UUID) (*GenerateQuoteResult, error) {
	old, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.IsExecuted {
		return nil, domainerrors.InvalidStateError("quote", "cannot refresh an executed quote")
	}

	result, err := s.GenerateQuote(ctx, &GenerateQuoteRequest{
		UserID:        old.UserID,
		FromChain:     old.FromChain,
		ToChain:       old.ToChain,
		FromToken:     old.FromToken,
		ToToken:       old.ToToken,
		Amount:        old.Amount.String(),
		OperationType: old.OperationType,
	})
	if err != nil {
		return nil, err
	}

	old.Expire()
	old.SetMetadata("refreshed_by", result.Quote.ID.String())
	if err := s.repo.Update(ctx, old); err != nil {
		return nil, fmt.Errorf("expire refreshed quote: %w", err)
	}

	s.logger.Info("Quote refreshed",
		zap.String("old_quote_id", old.ID.String()),
		zap.String("quote_id", result.Quote.ID.String()))
	return result, nil
}

// ExecuteQuote turns an owned, live quote into an operation and returns the operation ID
func (s *Service) ExecuteQuote(ctx context.Context, id, userID uuid.UUID) (uuid.UUID, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if !q.IsOwnedBy(userID) {
		return uuid.Nil, domainerrors.UnauthorizedError("quote does not belong to user")
	}
	if q.IsExecuted {
		return uuid.Nil, domainerrors.InvalidStateError("quote", "quote already executed")
	}
	if q.IsExpired() {
		return uuid.Nil, domainerrors.InvalidStateError("quote", "quote has expired")
	}
	if q.OperationType == "" {
		return uuid.Nil, domainerrors.InvalidStateError("quote", "quote has no operation type to execute")
	}

	// the quote is claimed before its operation is created
	operationID := uuid.New()
	if err := q.Execute(operationID); err != nil {
		return uuid.Nil, err
	}
	if err := s.repo.MarkExecuted(ctx, q); err != nil {
		return uuid.Nil, fmt.Errorf("mark quote executed: %w", err)
	}

	estimated := q.Route.EstimatedTime
	_, err = s.operations.CreateOperation(ctx, entities.NewOperationParams{
		ID:            operationID,
		UserID:        q.UserID,
		OperationType: q.OperationType,
		SourceChain:   q.FromChain,
		TargetChain:   q.ToChain,
		InputToken:    q.FromToken,
		InputAmount:   q.Amount.String(),
		OutputToken:   q.ToToken,
		Protocol:      primaryProtocol(q.Route),
		EstimatedTime: &estimated,
	})
	if err != nil {
		if releaseErr := s.repo.ReleaseExecution(ctx, q.ID, operationID); releaseErr != nil {
			s.logger.Error("Failed to release quote after operation creation failed",
				zap.String("quote_id", q.ID.String()),
				zap.String("operation_id", operationID.String()),
				zap.Error(releaseErr))
		}
		return uuid.Nil, fmt.Errorf("create operation from quote: %w", err)
	}

	s.logger.Info("Quote executed",
		zap.String("quote_id", q.ID.String()),
		zap.String("operation_id", operationID.String()),
		zap.String("user_id", userID.String()))
	return operationID, nil
}

func primaryProtocol(route entities.Route) string {
	for _, step := range route.Steps {
		if step.Action != "bridge" {
			return step.Protocol
		}
	}
	return ""
}

// CompareProviders quotes every provider in parallel and tags each with its strengths against the others
func (s *Service) CompareProviders(ctx context.Context, req *GenerateQuoteRequest) ([]ProviderComparison, error) {
	routeReq, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	primaryQuote, altQuotes := s.collectQuotes(ctx, routeReq)
	quotes := make([]*entities.ProviderQuote, 0, len(altQuotes)+1)
	if primaryQuote != nil {
		quotes = append(quotes, primaryQuote)
	}
	for _, q := range altQuotes {
		if q != nil {
			quotes = append(quotes, q)
		}
	}
	if len(quotes) == 0 {
		return nil, domainerrors.ServiceUnavailableError("quote", fmt.Errorf("no provider returned a usable route"))
	}

	candidates := make([]RouteCandidate, len(quotes))
	for i, q := range quotes {
		candidates[i] = candidateFromProviderQuote(q)
	}
	best, worst := extremes(candidates)

	comparisons := make([]ProviderComparison, len(quotes))
	for i, q := range quotes {
		c := ProviderComparison{
			Provider:  q.Provider,
			Quote:     *q,
			NetOutput: candidates[i].NetOutput(),
			Pros:      []string{},
			Cons:      []string{},
		}
		if i == best.price {
			c.Pros = append(c.Pros, "Best price")
		}
		if i == best.speed {
			c.Pros = append(c.Pros, "Fastest")
		}
		if i == best.reliability {
			c.Pros = append(c.Pros, "Most reliable")
		}
		if len(quotes) > 1 {
			if i == worst.price {
				c.Cons = append(c.Cons, "Lowest net output")
			}
			if i == worst.speed {
				c.Cons = append(c.Cons, "Slowest")
			}
			if i == worst.reliability {
				c.Cons = append(c.Cons, "Least reliable")
			}
		}

		switch i {
		case best.price:
			c.Recommendation = RecommendationBestPrice
		case best.speed:
			c.Recommendation = RecommendationFastest
		case best.reliability:
			c.Recommendation = RecommendationMostReliable
		default:
			c.Recommendation = RecommendationBalanced
		}
		comparisons[i] = c
	}

	return comparisons, nil
}

type ranking struct {
	price, speed, reliability int
}

// extremes returns the indices of the best and worst candidate per metric; ties keep the earliest
func extremes(candidates []RouteCandidate) (best, worst ranking) {
	for i := 1; i < len(candidates); i++ {
		c := candidates[i]
		if c.NetOutput().GreaterThan(candidates[best.price].NetOutput()) {
			best.price = i
		}
		if c.NetOutput().LessThan(candidates[worst.price].NetOutput()) {
			worst.price = i
		}
		if c.EstimatedTime < candidates[best.speed].EstimatedTime {
			best.speed = i
		}
		if c.EstimatedTime > candidates[worst.speed].EstimatedTime {
			worst.speed = i
		}
		if c.Confidence > candidates[best.reliability].Confidence {
			best.reliability = i
		}
		if c.Confidence < candidates[worst.reliability].Confidence {
			worst.reliability = i
		}
	}
	return best, worst
}
