// Package backtest drives strategies over feature pages and scores the resulting
// signals with a simple long-only trade simulation.
package backtest

import "github.com/ashourz/AlgoRoyale-sub002/internal/types"

// OutcomeKind distinguishes scored runs from runs that produced nothing to score.
type OutcomeKind string

const (
	OutcomeOK      OutcomeKind = "ok"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the result of backtesting one (symbol, strategy) pair. Metrics is only
// meaningful when Kind is OutcomeOK.
type Outcome struct {
	Kind    OutcomeKind
	Metrics types.Metrics
	Reason  string
}

// OK wraps computed metrics.
func OK(m types.Metrics) Outcome {
	return Outcome{Kind: OutcomeOK, Metrics: m, Reason: ""}
}

// Skipped marks a pair that had nothing to evaluate.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Metrics: types.Metrics{}, Reason: reason}
}

// Failed marks a pair whose evaluation failed.
func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Metrics: types.Metrics{}, Reason: reason}
}

// IsOK reports whether metrics are available.
func (o Outcome) IsOK() bool {
	return o.Kind == OutcomeOK
}
