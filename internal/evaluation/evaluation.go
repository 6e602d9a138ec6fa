// Package evaluation aggregates per-window optimisation and test results into
// cross-window viability summaries.
package evaluation

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric sources.
const (
	MetricTypeOptimization = "optimization"
	MetricTypeTest         = "test"
	MetricTypeBoth         = "both"
)

// DefaultMinScore is the viability score at or above which a pair is viable.
const DefaultMinScore = 0.75

// Thresholds are the viability checks on mean metrics.
type Thresholds struct {
	TotalReturn float64
	SharpeRatio float64
	WinRate     float64
	MaxDrawdown float64
}

// Config controls aggregation and viability.
type Config struct {
	MetricType string
	MinScore   float64
	Thresholds Thresholds
}

// Window is one train window's entry with its id.
type Window struct {
	ID    string
	Entry artefact.WindowEntry
}

// MetricNotes documents how the metrics in the summary are computed.
func MetricNotes() map[string]string {
	return map[string]string{
		types.MetricTotalReturn:    "sum of per-trade returns, not compounded",
		types.MetricSharpeRatio:    "per-trade Sharpe: mean/stdev (ddof=1) of trade returns, risk-free rate 0, not annualised; 0 with fewer than 2 trades",
		types.MetricWinRate:        "winning trades over trades with a non-zero return",
		types.MetricMaxDrawdown:    "largest drop of cumulative trade return below its running peak, curve starting at 0",
		types.MetricNumberOfTrades: "closed trades; informational",
		types.MetricProfitFactor:   "gross profit over gross loss, capped; informational",
	}
}

// Evaluate summarises the windows of one (strategy, symbol). Windows without the
// sections required by cfg.MetricType do not count. It fails with
// ErrCodeInsufficientData when no window qualifies.
func Evaluate(strategyName, symbol string, windows []Window, cfg Config) (artefact.Evaluation, error) {
	series := map[string][]float64{}
	params := make([]artefact.WindowParams, 0, len(windows))
	nWindows := 0

	ordered := slices.Clone(windows)
	slices.SortFunc(ordered, func(a, b Window) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	for _, w := range ordered {
		samples := samplesFor(w.Entry, cfg.MetricType)
		if len(samples) == 0 {
			continue
		}

		nWindows++

		for _, m := range samples {
			for _, name := range types.AllMetrics() {
				v, _ := m.Value(name)
				series[name] = append(series[name], v)
			}
		}

		if w.Entry.Optimization != nil {
			if best, ok := w.Entry.Optimization.BestParams.First(); ok {
				params = append(params, artefact.WindowParams{WindowID: w.ID, BestParams: best})
			}
		}
	}

	if nWindows == 0 {
		return artefact.Evaluation{}, errors.Newf(errors.ErrCodeInsufficientData, "%s/%s: no completed windows", strategyName, symbol)
	}

	summary := make(map[string]artefact.Stat, len(series))
	for name, values := range series {
		summary[name] = Summarize(values)
	}

	score := ViabilityScore(summary, cfg.Thresholds)
	mode, consistency := ModeParams(params)

	return artefact.Evaluation{
		Strategy:             strategyName,
		Symbol:               symbol,
		Summary:              summary,
		NWindows:             nWindows,
		MetricType:           cfg.MetricType,
		ViabilityScore:       score,
		IsViable:             IsViable(score, cfg.MinScore),
		MostCommonBestParams: mode,
		ParamConsistency:     consistency,
		WindowParams:         params,
		MetricNotes:          MetricNotes(),
	}, nil
}

func samplesFor(e artefact.WindowEntry, metricType string) []types.Metrics {
	var out []types.Metrics

	if metricType != MetricTypeTest && e.Optimization != nil {
		out = append(out, e.Optimization.Metrics)
	}

	if metricType != MetricTypeOptimization && e.Test != nil {
		out = append(out, e.Test.Metrics)
	}

	return out
}

// Summarize computes mean, sample standard deviation (0 for fewer than two values),
// min and max.
func Summarize(values []float64) artefact.Stat {
	if len(values) == 0 {
		return artefact.Stat{Mean: 0, Std: 0, Min: 0, Max: 0}
	}

	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}

	if math.IsNaN(std) {
		std = 0
	}

	return artefact.Stat{
		Mean: stat.Mean(values, nil),
		Std:  std,
		Min:  floats.Min(values),
		Max:  floats.Max(values),
	}
}

// ViabilityScore is the fraction of passed checks: mean total return, Sharpe and win
// rate at or above their thresholds and mean drawdown at or below its threshold.
func ViabilityScore(summary map[string]artefact.Stat, t Thresholds) float64 {
	checks := []bool{
		summary[types.MetricTotalReturn].Mean >= t.TotalReturn,
		summary[types.MetricSharpeRatio].Mean >= t.SharpeRatio,
		summary[types.MetricWinRate].Mean >= t.WinRate,
		summary[types.MetricMaxDrawdown].Mean <= t.MaxDrawdown,
	}

	passed := 0

	for _, ok := range checks {
		if ok {
			passed++
		}
	}

	return float64(passed) / float64(len(checks))
}

// IsViable applies the minimum score.
func IsViable(score, minScore float64) bool {
	return score >= minScore
}

// ModeParams picks the most frequent serialised value of every role slot independently.
// Ties go to the value seen first. Consistency is the share of windows whose complete
// parameters equal the assembled mode.
func ModeParams(windows []artefact.WindowParams) (strategy.BestParams, float64) {
	empty := strategy.BestParams{
		EntryConditions:  []strategy.ClassParams{},
		ExitConditions:   []strategy.ClassParams{},
		TrendConditions:  []strategy.ClassParams{},
		FilterConditions: nil,
		StatefulLogic:    nil,
	}

	if len(windows) == 0 {
		return empty, 0
	}

	all := make([]strategy.BestParams, len(windows))
	for i, w := range windows {
		all[i] = w.BestParams
	}

	mode := strategy.BestParams{
		EntryConditions:  modeOf(all, entrySlot),
		ExitConditions:   modeOf(all, exitSlot),
		TrendConditions:  modeOf(all, trendSlot),
		FilterConditions: modeOf(all, filterSlot),
		StatefulLogic:    modeOf(all, engineSlot),
	}

	matches := 0

	for _, p := range all {
		if sameSlots(p, mode) {
			matches++
		}
	}

	return mode, float64(matches) / float64(len(all))
}

func entrySlot(p strategy.BestParams) []strategy.ClassParams { return p.EntryConditions }
func exitSlot(p strategy.BestParams) []strategy.ClassParams { return p.ExitConditions }
func trendSlot(p strategy.BestParams) []strategy.ClassParams { return p.TrendConditions }
func filterSlot(p strategy.BestParams) []strategy.ClassParams { return p.FilterConditions }
func engineSlot(p strategy.BestParams) strategy.ClassParams { return p.StatefulLogic }

func sameSlots(a, b strategy.BestParams) bool {
	return canonical(entrySlot(a)) == canonical(entrySlot(b)) &&
		canonical(exitSlot(a)) == canonical(exitSlot(b)) &&
		canonical(trendSlot(a)) == canonical(trendSlot(b)) &&
		canonical(filterSlot(a)) == canonical(filterSlot(b)) &&
		canonical(engineSlot(a)) == canonical(engineSlot(b))
}

func modeOf[T any](all []strategy.BestParams, slot func(strategy.BestParams) T) T {
	var (
		order  []string
		counts = map[string]int{}
		values = map[string]T{}
	)

	for _, p := range all {
		v := slot(p)
		k := canonical(v)

		if _, ok := counts[k]; !ok {
			order = append(order, k)
			values[k] = v
		}

		counts[k]++
	}

	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}

	return values[best]
}

// canonical serialises v with sorted map keys. Empty and nil lists compare equal.
func canonical(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}

	s := string(data)
	if s == "[]" || s == "{}" {
		return "null"
	}

	return s
}
