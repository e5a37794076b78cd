package quote

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

// RoutePricer turns a provider's raw price into a full route. Swap it out for a real pricing engine.
type RoutePricer interface {
	BuildRoute(req *entities.RouteQuoteRequest, quote *entities.ProviderQuote, steps []entities.RouteStep) entities.Route
	DescribeAlternative(primary entities.Route, quote *entities.ProviderQuote) entities.AlternativeRoute
}

// DefaultPricer derives minimum received from a fixed slippage tolerance and splits gas and time evenly across steps
type DefaultPricer struct {
	SlippageTolerance decimal.Decimal // percent
}

// NewDefaultPricer creates a pricer with the given slippage tolerance in percent
func NewDefaultPricer(slippageTolerance decimal.Decimal) *DefaultPricer {
	return &DefaultPricer{SlippageTolerance: slippageTolerance}
}

var hundred = decimal.NewFromInt(100)

// BuildRoute implements RoutePricer
func (p *DefaultPricer) BuildRoute(req *entities.RouteQuoteRequest, quote *entities.ProviderQuote, steps []entities.RouteStep) entities.Route {
	fees := normalizeFees(quote.Fees)

	priced := make([]entities.RouteStep, len(steps))
	copy(priced, steps)
	if n := len(priced); n > 0 {
		gasPerStep := fees.Gas.Div(decimal.NewFromInt(int64(n)))
		timePerStep := quote.EstimatedTime / n
		for i := range priced {
			priced[i].EstimatedGas = gasPerStep
			priced[i].EstimatedTime = timePerStep
		}
	}

	priceImpact := quote.PriceImpact
	if priceImpact.IsZero() && req.Amount.IsPositive() && quote.OutputAmount.LessThan(req.Amount) {
		priceImpact = req.Amount.Sub(quote.OutputAmount).Div(req.Amount).Mul(hundred)
	}

	return entities.Route{
		Provider:        quote.Provider,
		Steps:           priced,
		EstimatedOutput: quote.OutputAmount,
		MinimumReceived: quote.OutputAmount.Mul(hundred.Sub(p.SlippageTolerance)).Div(hundred),
		PriceImpact:     priceImpact,
		Fees:            fees,
		EstimatedTime:   quote.EstimatedTime,
		Confidence:      quote.Confidence,
	}
}

// DescribeAlternative implements RoutePricer
func (p *DefaultPricer) DescribeAlternative(primary entities.Route, quote *entities.ProviderQuote) entities.AlternativeRoute {
	fees := normalizeFees(quote.Fees)
	alt := entities.AlternativeRoute{
		Provider:      quote.Provider,
		OutputAmount:  quote.OutputAmount,
		EstimatedTime: quote.EstimatedTime,
		Fees:          fees,
		Confidence:    quote.Confidence,
		Advantages:    []string{},
		Disadvantages: []string{},
	}

	switch {
	case quote.OutputAmount.GreaterThan(primary.EstimatedOutput):
		alt.Advantages = append(alt.Advantages, fmt.Sprintf("Higher output (+%s)", quote.OutputAmount.Sub(primary.EstimatedOutput).String()))
	case quote.OutputAmount.LessThan(primary.EstimatedOutput):
		alt.Disadvantages = append(alt.Disadvantages, fmt.Sprintf("Lower output (-%s)", primary.EstimatedOutput.Sub(quote.OutputAmount).String()))
	}
	switch {
	case quote.EstimatedTime < primary.EstimatedTime:
		alt.Advantages = append(alt.Advantages, "Faster execution")
	case quote.EstimatedTime > primary.EstimatedTime:
		alt.Disadvantages = append(alt.Disadvantages, "Slower execution")
	}
	switch {
	case fees.Total.LessThan(primary.Fees.Total):
		alt.Advantages = append(alt.Advantages, "Lower fees")
	case fees.Total.GreaterThan(primary.Fees.Total):
		alt.Disadvantages = append(alt.Disadvantages, "Higher fees")
	}
	switch {
	case quote.Confidence > primary.Confidence:
		alt.Advantages = append(alt.Advantages, "Higher reliability")
	case quote.Confidence < primary.Confidence:
		alt.Disadvantages = append(alt.Disadvantages, "Lower reliability")
	}
	return alt
}

// normalizeFees fills in a missing total from the fee parts
func normalizeFees(fees entities.Fees) entities.Fees {
	if fees.Total.IsZero() {
		return entities.NewFees(fees.Bridge, fees.Gas, fees.Protocol)
	}
	return fees
}

// routeSteps lays out the protocol hops of an operation type; a request without a type is a plain bridge
func routeSteps(req *entities.RouteQuoteRequest, bridgeProvider string) ([]entities.RouteStep, error) {
	if req.OperationType == "" {
		return []entities.RouteStep{{
			Protocol:  bridgeProvider,
			Action:    "bridge",
			FromToken: req.FromToken,
			ToToken:   req.FromToken,
		}}, nil
	}

	template, err := entities.StepTemplateFor(req.OperationType)
	if err != nil {
		return nil, err
	}

	target := req.ToToken
	if target == "" {
		target = req.FromToken
	}
	token := req.FromToken
	steps := make([]entities.RouteStep, 0, len(template))
	for _, t := range template {
		step := entities.RouteStep{Action: t.Action, FromToken: token}
		switch t.Type {
		case entities.StepTypeBridgeToTarget, entities.StepTypeBridgeBack:
			step.Protocol = bridgeProvider
			step.ToToken = token
		case entities.StepTypeProtocolExecution:
			step.Protocol = protocolFor(req.OperationType)
			step.ToToken = target
			token = target
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func protocolFor(t entities.OperationType) string {
	switch t {
	case entities.OperationTypeCrossChainSwap:
		return "dex"
	case entities.OperationTypeCrossChainLending:
		return "lending"
	case entities.OperationTypeCrossChainStaking:
		return "staking"
	case entities.OperationTypeCrossChainYieldFarming:
		return "amm"
	}
	return string(t)
}
