// Package registry loads the viable strategies of every symbol for the online runtime.
package registry

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/evaluation"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// Entry is one rehydrated strategy of a symbol.
type Entry struct {
	Strategy       *strategy.SignalStrategy
	Weight         float64
	ViabilityScore float64
}

// Registry holds the strategies per symbol. It is read-only once loaded.
type Registry struct {
	store   *store.Store
	factory *strategy.Factory
	logger  *logger.Logger

	mu      sync.RWMutex
	entries map[string][]Entry
}

func New(st *store.Store, factory *strategy.Factory, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Registry{
		store:   st,
		factory: factory,
		logger:  log,
		entries: map[string][]Entry{},
	}
}

// Load reads the symbol summaries, or the evaluation results when no summary exists,
// and rehydrates every listed strategy. A strategy map with an incompatible version
// fails the load; strategies that cannot be rehydrated are logged and left out.
func (r *Registry) Load(ctx context.Context) error {
	if _, err := strategy.ReadStrategyMap(r.store); err != nil {
		if !errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
			return err
		}

		r.logger.Warn("No strategy map found, loading without version check")
	}

	summaries, err := r.summaries(ctx)
	if err != nil {
		return err
	}

	entries := make(map[string][]Entry, len(summaries))

	for _, summary := range summaries {
		for _, sig := range summary.Strategies {
			s, err := r.factory.Rehydrate(sig.BestParams)
			if err != nil {
				r.logger.Warn("Skipping strategy that cannot be rehydrated",
					zap.String("symbol", summary.Symbol),
					zap.String("strategy", sig.Strategy),
					zap.Error(err),
				)

				continue
			}

			entries[summary.Symbol] = append(entries[summary.Symbol], Entry{
				Strategy:       s,
				Weight:         sig.Weight,
				ViabilityScore: sig.ViabilityScore,
			})
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.logger.Info("Strategy registry loaded",
		zap.Int("symbols", len(entries)),
		zap.Int("strategies", r.count()),
	)

	return nil
}

func (r *Registry) summaries(ctx context.Context) ([]artefact.SymbolSignals, error) {
	symbols, err := r.store.ListDirs(string(columns.StageSymbolSummary))
	if err != nil {
		return nil, err
	}

	var out []artefact.SymbolSignals

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCanceled, "registry load canceled", err)
		}

		s, err := evaluation.ReadSymbolSignals(r.store, symbol)
		if errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	if len(out) > 0 {
		return out, nil
	}

	r.logger.Info("No symbol summaries found, falling back to evaluation results")

	return r.fromEvaluations(ctx)
}

// fromEvaluations rebuilds symbol summaries from the per-strategy evaluation results.
func (r *Registry) fromEvaluations(ctx context.Context) ([]artefact.SymbolSignals, error) {
	strategies, err := r.store.ListDirs(string(columns.StageSignalEval))
	if err != nil {
		return nil, err
	}

	results := map[string][]artefact.Evaluation{}

	for _, name := range strategies {
		symbols, err := r.store.ListDirs(string(columns.StageSignalEval), name)
		if err != nil {
			return nil, err
		}

		for _, symbol := range symbols {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(errors.ErrCodeCanceled, "registry load canceled", err)
			}

			ev, err := evaluation.ReadEvaluation(r.store, name, symbol)
			if errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
				continue
			}

			if err != nil {
				return nil, err
			}

			results[symbol] = append(results[symbol], ev)
		}
	}

	out := make([]artefact.SymbolSignals, 0, len(results))
	for _, symbol := range slices.Sorted(maps.Keys(results)) {
		out = append(out, evaluation.SymbolSummary(symbol, results[symbol]))
	}

	return out, nil
}

// Symbols lists the symbols with at least one strategy, sorted.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.entries))
}

// StrategiesFor returns the strategies of symbol in descending viability order.
func (r *Registry) StrategiesFor(symbol string) []*strategy.SignalStrategy {
	entries := r.Entries(symbol)

	out := make([]*strategy.SignalStrategy, len(entries))
	for i, e := range entries {
		out[i] = e.Strategy
	}

	return out
}

// Entries returns the strategies of symbol with their weights.
func (r *Registry) Entries(symbol string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.entries[symbol])
}

// MaxWindow is the largest warm-up any strategy of symbol needs.
func (r *Registry) MaxWindow(symbol string) int {
	window := 0
	for _, s := range r.StrategiesFor(symbol) {
		window = max(window, s.MaxWindow())
	}

	return window
}

func (r *Registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		n += len(e)
	}

	return n
}
