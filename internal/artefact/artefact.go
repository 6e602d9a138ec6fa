// Package artefact defines the JSON documents written by the pipeline stages and the
// read-modify-write helpers that keep sibling sections intact.
package artefact

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

const (
	OptimizationFile  = "optimization_result.json"
	EvaluationFile    = "evaluation_result.json"
	SymbolSignalsFile = "symbol_signals.json"
	PortfolioFile     = "portfolio_result.json"
)

// Section names inside one window entry of an optimisation result.
const (
	SectionOptimization = "optimization"
	SectionTest         = "test"
	SectionWindow       = "window"
)

// OneOrMany encodes a single value as itself and a Pareto front as a JSON list.
type OneOrMany[T any] struct {
	Values []T
	List   bool
}

// One wraps a single value.
func One[T any](v T) OneOrMany[T] {
	return OneOrMany[T]{Values: []T{v}, List: false}
}

// Many wraps a list of values.
func Many[T any](vs []T) OneOrMany[T] {
	return OneOrMany[T]{Values: vs, List: true}
}

// First returns the first value, if any.
func (o OneOrMany[T]) First() (T, bool) {
	if len(o.Values) == 0 {
		var zero T

		return zero, false
	}

	return o.Values[0], true
}

func (o OneOrMany[T]) MarshalJSON() ([]byte, error) {
	if o.List {
		if o.Values == nil {
			return []byte("[]"), nil
		}

		return json.Marshal(o.Values)
	}

	if len(o.Values) == 0 {
		return []byte("null"), nil
	}

	return json.Marshal(o.Values[0])
}

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*o = OneOrMany[T]{Values: nil, List: false}
	case len(trimmed) > 0 && trimmed[0] == '[':
		var vs []T
		if err := json.Unmarshal(trimmed, &vs); err != nil {
			return err
		}

		*o = Many(vs)
	default:
		var v T
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}

		*o = One(v)
	}

	return nil
}

// Meta describes the study that produced an optimisation section.
type Meta struct {
	RunTimeSec     float64           `json:"run_time_sec"`
	NTrials        int               `json:"n_trials"`
	Symbol         string            `json:"symbol"`
	Direction      OneOrMany[string] `json:"direction"`
	MultiObjective bool              `json:"multi_objective"`
}

// Optimization is the train-window result of one (strategy, symbol).
type Optimization struct {
	Strategy   string                         `json:"strategy"`
	BestValue  OneOrMany[float64]             `json:"best_value"`
	BestParams OneOrMany[strategy.BestParams] `json:"best_params"`
	Meta       Meta                           `json:"meta"`
	Metrics    types.Metrics                  `json:"metrics"`
}

// Test is the out-of-sample result recorded under the train window's entry.
type Test struct {
	Metrics types.Metrics     `json:"metrics"`
	Window  types.WindowDates `json:"window"`
}

// WindowEntry is one train window of an optimisation result file.
type WindowEntry struct {
	Optimization *Optimization     `json:"optimization,omitempty"`
	Test         *Test             `json:"test,omitempty"`
	Window       types.WindowDates `json:"window"`
}

// OptimizationResult maps train window ids to their entries.
type OptimizationResult map[string]WindowEntry

// ReadOptimization loads an optimisation result file. A missing file is an empty result.
func ReadOptimization(st *store.Store, path string) (OptimizationResult, error) {
	result := OptimizationResult{}
	if err := st.ReadJSON(path, &result); err != nil {
		if errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
			return OptimizationResult{}, nil
		}

		return nil, err
	}

	return result, nil
}

// UpdateSection replaces one section of a window entry and writes the file back. Other
// sections and windows, known or not, are preserved. The window dates are recorded
// when the entry has none.
func UpdateSection(ctx context.Context, st *store.Store, path string, window types.Window, section string, value any) error {
	doc := map[string]map[string]json.RawMessage{}
	if err := st.ReadJSON(path, &doc); err != nil && !errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidData, err, "failed to encode %s section", section)
	}

	entry := doc[window.ID()]
	if entry == nil {
		entry = map[string]json.RawMessage{}
	}

	entry[section] = encoded

	if _, ok := entry[SectionWindow]; !ok {
		dates, err := json.Marshal(window.Dates())
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidData, "failed to encode window", err)
		}

		entry[SectionWindow] = dates
	}

	doc[window.ID()] = entry

	return st.WriteJSON(ctx, path, doc)
}

// Stat summarises one metric across windows.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// WindowParams records the best parameters chosen for one train window.
type WindowParams struct {
	WindowID   string              `json:"window_id"`
	BestParams strategy.BestParams `json:"best_params"`
}

// Evaluation is the cross-window viability summary of one (strategy, symbol).
type Evaluation struct {
	Strategy             string              `json:"strategy"`
	Symbol               string              `json:"symbol"`
	Summary              map[string]Stat     `json:"summary"`
	NWindows             int                 `json:"n_windows"`
	MetricType           string              `json:"metric_type"`
	ViabilityScore       float64             `json:"viability_score"`
	IsViable             bool                `json:"is_viable"`
	MostCommonBestParams strategy.BestParams `json:"most_common_best_params"`
	ParamConsistency     float64             `json:"param_consistency"`
	WindowParams         []WindowParams      `json:"window_params"`
	MetricNotes          map[string]string   `json:"metric_notes"`
}

// StrategySignal is one viable strategy selected for a symbol.
type StrategySignal struct {
	Strategy       string              `json:"strategy"`
	Weight         float64             `json:"weight"`
	ViabilityScore float64             `json:"viability_score"`
	BestParams     strategy.BestParams `json:"best_params"`
}

// SymbolSignals lists the viable strategies of one symbol; weights sum to 1.
type SymbolSignals struct {
	Symbol     string           `json:"symbol"`
	Strategies []StrategySignal `json:"strategies"`
}

// Allocation is one symbol's share of a portfolio.
type Allocation struct {
	Symbol     string           `json:"symbol"`
	Weight     float64          `json:"weight"`
	Strategies []StrategySignal `json:"strategies"`
}

// Portfolio is written by the portfolio optimisation and testing stages. Metrics is set
// by testing only.
type Portfolio struct {
	Window      types.WindowDates `json:"window"`
	Allocations []Allocation      `json:"allocations"`
	Metrics     *types.Metrics    `json:"metrics,omitempty"`
	Trades      int               `json:"trades,omitempty"`
}
