// Package portfolio turns per-symbol viable strategies into weighted allocations and
// scores their combined trades.
package portfolio

import (
	"cmp"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/backtest"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// DefaultMaxSymbolWeight caps a single symbol's share.
const DefaultMaxSymbolWeight = 0.5

// Candidate is one viable (symbol, strategy) with its in-symbol weight.
type Candidate struct {
	Symbol string
	Signal artefact.StrategySignal
}

// Allocation lists symbol weights in descending order.
type Allocation []artefact.Allocation

// Total is the sum of symbol weights.
func (a Allocation) Total() float64 {
	total := 0.0
	for _, s := range a {
		total += s.Weight
	}

	return total
}

// Allocator assigns portfolio weights to candidates.
type Allocator interface {
	Allocate(candidates []Candidate) (Allocation, error)
}

// Candidates flattens symbol summaries.
func Candidates(summaries []artefact.SymbolSignals) []Candidate {
	var out []Candidate

	for _, s := range summaries {
		for _, sig := range s.Strategies {
			out = append(out, Candidate{Symbol: s.Symbol, Signal: sig})
		}
	}

	return out
}

// ViabilityWeighted weights each symbol by the summed viability scores of its
// strategies, capped at MaxSymbolWeight with the excess spread over uncapped symbols.
// Weights sum to 1 unless every symbol is capped.
type ViabilityWeighted struct {
	MaxSymbolWeight float64
}

// NewViabilityWeighted creates the allocator. A non-positive cap uses the default.
func NewViabilityWeighted(maxSymbolWeight float64) *ViabilityWeighted {
	if maxSymbolWeight <= 0 || maxSymbolWeight > 1 {
		maxSymbolWeight = DefaultMaxSymbolWeight
	}

	return &ViabilityWeighted{MaxSymbolWeight: maxSymbolWeight}
}

func (v *ViabilityWeighted) Allocate(candidates []Candidate) (Allocation, error) {
	if len(candidates) == 0 {
		return Allocation{}, nil
	}

	scores := map[string]float64{}
	strategies := map[string][]artefact.StrategySignal{}

	for _, c := range candidates {
		if c.Signal.ViabilityScore < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidData, "%s/%s: negative viability score", c.Symbol, c.Signal.Strategy)
		}

		scores[c.Symbol] += c.Signal.ViabilityScore
		strategies[c.Symbol] = append(strategies[c.Symbol], c.Signal)
	}

	symbols := make([]string, 0, len(scores))
	for s := range scores {
		symbols = append(symbols, s)
	}

	slices.Sort(symbols)

	raw := make([]float64, len(symbols))
	for i, s := range symbols {
		raw[i] = scores[s]
	}

	weights := capWeights(normalise(raw), v.MaxSymbolWeight)

	out := make(Allocation, len(symbols))
	for i, s := range symbols {
		out[i] = artefact.Allocation{Symbol: s, Weight: weights[i], Strategies: strategies[s]}
	}

	slices.SortStableFunc(out, func(a, b artefact.Allocation) int {
		return cmp.Compare(b.Weight, a.Weight)
	})

	return out, nil
}

// normalise scales values to sum 1; all-zero input becomes equal weights.
func normalise(values []float64) []float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}

	out := make([]float64, len(values))

	for i, v := range values {
		if total > 0 {
			out[i] = v / total
		} else {
			out[i] = 1 / float64(len(values))
		}
	}

	return out
}

// capWeights clamps weights at limit and redistributes the excess proportionally over
// the weights still below it, until no weight exceeds the limit.
func capWeights(weights []float64, limit float64) []float64 {
	out := slices.Clone(weights)
	capped := make([]bool, len(out))

	for {
		excess := 0.0
		free := 0.0

		for i, w := range out {
			if capped[i] {
				continue
			}

			if w > limit {
				excess += w - limit
				out[i] = limit
				capped[i] = true
			} else {
				free += w
			}
		}

		if excess == 0 {
			return out
		}

		if free == 0 {
			return out
		}

		for i := range out {
			if !capped[i] {
				out[i] += excess * out[i] / free
			}
		}
	}
}

// WeightedTrade is a trade scaled by its portfolio weight.
type WeightedTrade struct {
	Symbol   string
	Strategy string
	Weight   float64
	Trade    backtest.Trade
}

// Metrics orders trades by exit time and scores their weighted returns.
func Metrics(e *backtest.Evaluator, trades []WeightedTrade) types.Metrics {
	ordered := slices.Clone(trades)
	slices.SortStableFunc(ordered, func(a, b WeightedTrade) int {
		return a.Trade.ExitTime.Compare(b.Trade.ExitTime)
	})

	returns := make([]float64, len(ordered))
	for i, t := range ordered {
		returns[i] = t.Weight * t.Trade.Return
	}

	return e.Metrics(returns)
}
