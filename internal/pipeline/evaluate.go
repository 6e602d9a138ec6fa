package pipeline

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/evaluation"
)

// EvaluationCoordinator aggregates the optimisation windows of every (strategy, symbol)
// and writes the symbol summaries.
type EvaluationCoordinator struct {
	deps      Deps
	evaluator *evaluation.Evaluator
}

func NewEvaluationCoordinator(deps Deps, cfg evaluation.Config) *EvaluationCoordinator {
	deps = deps.withDefaults()

	return &EvaluationCoordinator{
		deps:      deps,
		evaluator: evaluation.NewEvaluator(deps.Store, cfg, deps.Logger),
	}
}

// Run evaluates every optimised strategy for each symbol and returns the written
// summaries ordered by symbol. Symbols that fail are logged and left out.
func (c *EvaluationCoordinator) Run(ctx context.Context, symbols []string) ([]artefact.SymbolSignals, error) {
	strategies, err := c.evaluator.Strategies()
	if err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		summaries []artefact.SymbolSignals
	)

	err = forEach(ctx, c.deps.Concurrency, symbols, func(ctx context.Context, symbol string) error {
		log := c.deps.Logger.Unit(columns.StageSymbolSummary.String(), "", symbol, "")
		started := time.Now()

		summary, err := c.evaluator.EvaluateSymbol(ctx, symbol, strategies)
		if err == nil {
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
		}

		return c.deps.finish(log, columns.StageSymbolSummary, started, unitDone, err)
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(summaries, func(a, b artefact.SymbolSignals) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})

	return summaries, nil
}
