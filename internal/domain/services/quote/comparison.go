package quote

import (
	"github.com/shopspring/decimal"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

// Balanced score weights
const (
	netOutputWeight   = 0.4
	inverseTimeWeight = 0.4
	confidenceWeight  = 0.2
)

// RouteCandidate is one priced route taking part in a comparison
type RouteCandidate struct {
	Provider      string          `json:"provider"`
	OutputAmount  decimal.Decimal `json:"output_amount"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	EstimatedTime int             `json:"estimated_time"`
	Confidence    int             `json:"confidence"`
}

// NetOutput returns output minus fees
func (c RouteCandidate) NetOutput() decimal.Decimal {
	return c.OutputAmount.Sub(c.TotalFees)
}

// RouteComparison holds the winners of each comparison metric
type RouteComparison struct {
	Cheapest RouteCandidate `json:"cheapest"`
	Fastest  RouteCandidate `json:"fastest"`
	Balanced RouteCandidate `json:"balanced"`
	// BalancedScores is aligned with the compared candidates
	BalancedScores []float64 `json:"balanced_scores"`
}

func candidateFromRoute(route entities.Route) RouteCandidate {
	return RouteCandidate{
		Provider:      route.Provider,
		OutputAmount:  route.EstimatedOutput,
		TotalFees:     route.Fees.Total,
		EstimatedTime: route.EstimatedTime,
		Confidence:    route.Confidence,
	}
}

func candidateFromAlternative(alt entities.AlternativeRoute) RouteCandidate {
	return RouteCandidate{
		Provider:      alt.Provider,
		OutputAmount:  alt.OutputAmount,
		TotalFees:     alt.Fees.Total,
		EstimatedTime: alt.EstimatedTime,
		Confidence:    alt.Confidence,
	}
}

func candidateFromProviderQuote(pq *entities.ProviderQuote) RouteCandidate {
	return RouteCandidate{
		Provider:      pq.Provider,
		OutputAmount:  pq.OutputAmount,
		TotalFees:     pq.Fees.Total,
		EstimatedTime: pq.EstimatedTime,
		Confidence:    pq.Confidence,
	}
}

// CompareRoutes picks the cheapest, fastest and balanced candidates.
// Every reduction is strict, so on ties the earliest candidate wins. Returns nil for no candidates.
func CompareRoutes(candidates []RouteCandidate) *RouteComparison {
	if len(candidates) == 0 {
		return nil
	}

	cheapest, fastest := 0, 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].NetOutput().GreaterThan(candidates[cheapest].NetOutput()) {
			cheapest = i
		}
		if candidates[i].EstimatedTime < candidates[fastest].EstimatedTime {
			fastest = i
		}
	}

	scores := BalancedScores(candidates)
	balanced := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[balanced] {
			balanced = i
		}
	}

	return &RouteComparison{
		Cheapest:       candidates[cheapest],
		Fastest:        candidates[fastest],
		Balanced:       candidates[balanced],
		BalancedScores: scores,
	}
}

// BalancedScores computes 0.4*net/maxNet + 0.4*minTime/time + 0.2*confidence/100 per candidate.
// The net term is 0 when no candidate has a positive net output; a zero time scores the full time term.
func BalancedScores(candidates []RouteCandidate) []float64 {
	if len(candidates) == 0 {
		return nil
	}

	maxNet := candidates[0].NetOutput()
	minTime := candidates[0].EstimatedTime
	for _, c := range candidates[1:] {
		if c.NetOutput().GreaterThan(maxNet) {
			maxNet = c.NetOutput()
		}
		if c.EstimatedTime < minTime {
			minTime = c.EstimatedTime
		}
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		var netTerm, timeTerm float64
		if maxNet.IsPositive() {
			netTerm = c.NetOutput().Div(maxNet).InexactFloat64()
		}
		if c.EstimatedTime <= 0 {
			timeTerm = 1
		} else if minTime > 0 {
			timeTerm = float64(minTime) / float64(c.EstimatedTime)
		}
		scores[i] = netOutputWeight*netTerm + inverseTimeWeight*timeTerm + confidenceWeight*float64(c.Confidence)/100
	}
	return scores
}
