package pipeline

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/backtest"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/evaluation"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/portfolio"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// PortfolioCoordinator allocates the viable strategies across symbols and replays the
// weighted allocation on each test window.
type PortfolioCoordinator struct {
	deps      Deps
	allocator portfolio.Allocator
	factory   *strategy.Factory
	executor  *backtest.Executor
	evaluator *backtest.Evaluator
}

func NewPortfolioCoordinator(deps Deps, allocator portfolio.Allocator, factory *strategy.Factory) *PortfolioCoordinator {
	deps = deps.withDefaults()

	return &PortfolioCoordinator{
		deps:      deps,
		allocator: allocator,
		factory:   factory,
		executor:  backtest.NewExecutor(deps.Logger, deps.Recorder, columns.StagePortfolioTest, nil),
		evaluator: backtest.NewEvaluator(),
	}
}

// Optimize allocates the symbol summaries of symbols and writes the allocation for each
// window. Symbols without a summary are left out.
func (c *PortfolioCoordinator) Optimize(ctx context.Context, symbols []string, windows []types.Window) (portfolio.Allocation, error) {
	log := c.deps.Logger.Unit(columns.StagePortfolioOpt.String(), "", "", "")
	started := time.Now()

	var summaries []artefact.SymbolSignals

	for _, symbol := range symbols {
		s, err := evaluation.ReadSymbolSignals(c.deps.Store, symbol)
		if errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
			log.Debug("Skipping symbol without summary", zap.String("symbol", symbol))

			continue
		}

		if err != nil {
			return nil, err
		}

		summaries = append(summaries, s)
	}

	allocation, err := c.allocator.Allocate(portfolio.Candidates(summaries))
	if err != nil {
		return nil, err
	}

	for _, w := range windows {
		doc := artefact.Portfolio{
			Window:      w.Dates(),
			Allocations: allocation,
			Metrics:     nil,
			Trades:      0,
		}

		if err := c.deps.Store.WriteJSON(ctx, artefact.PortfolioPath(c.deps.Store, columns.StagePortfolioOpt, w), doc); err != nil {
			return nil, err
		}
	}

	c.deps.Recorder.Unit(columns.StagePortfolioOpt.String(), string(unitDone), time.Since(started))
	log.Info("Portfolio allocated",
		zap.Int("symbols", len(allocation)),
		zap.Float64("total_weight", allocation.Total()),
		zap.Int("windows", len(windows)),
	)

	return allocation, nil
}

// Test replays the allocation of each window and writes its portfolio metrics.
func (c *PortfolioCoordinator) Test(ctx context.Context, windows []types.Window) error {
	return forEach(ctx, c.deps.Concurrency, windows, func(ctx context.Context, w types.Window) error {
		log := c.deps.Logger.Unit(columns.StagePortfolioTest.String(), "", "", w.ID())
		started := time.Now()
		result, err := c.test(ctx, log, w)

		return c.deps.finish(log, columns.StagePortfolioTest, started, result, err)
	})
}

func (c *PortfolioCoordinator) test(ctx context.Context, log *logger.Logger, w types.Window) (unitResult, error) {
	st := c.deps.Store

	var doc artefact.Portfolio

	err := st.ReadJSON(artefact.PortfolioPath(st, columns.StagePortfolioOpt, w), &doc)
	if errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
		log.Info("Skipping window without allocation")

		return unitSkipped, nil
	}

	if err != nil {
		return "", err
	}

	var trades []portfolio.WeightedTrade

	for _, alloc := range doc.Allocations {
		featureKey := store.DataKey(columns.StageFeatures, alloc.Symbol, w)
		if !st.IsDone(featureKey) {
			log.Info("Skipping symbol without completed features", zap.String("symbol", alloc.Symbol))

			continue
		}

		for _, sig := range alloc.Strategies {
			weighted, err := c.replay(ctx, alloc, sig, featureKey)
			if err != nil {
				if isCanceled(err) {
					return "", err
				}

				log.Warn("Skipping strategy that failed to replay",
					zap.String("symbol", alloc.Symbol),
					zap.String("strategy", sig.Strategy),
					zap.Error(err),
				)

				continue
			}

			trades = append(trades, weighted...)
		}
	}

	m := portfolio.Metrics(c.evaluator, trades)
	doc.Metrics = &m
	doc.Trades = len(trades)

	if err := st.WriteJSON(ctx, artefact.PortfolioPath(st, columns.StagePortfolioTest, w), doc); err != nil {
		return "", err
	}

	log.Info("Portfolio tested",
		zap.Int("trades", len(trades)),
		zap.Float64("total_return", m.TotalReturn),
		zap.Float64("sharpe_ratio", m.SharpeRatio),
	)

	return unitDone, nil
}

// replay runs one allocated strategy on the window and weights its trades by the
// symbol weight times the strategy's in-symbol weight.
func (c *PortfolioCoordinator) replay(ctx context.Context, alloc artefact.Allocation, sig artefact.StrategySignal, key store.Key) ([]portfolio.WeightedTrade, error) {
	s, err := c.factory.Rehydrate(sig.BestParams)
	if err != nil {
		return nil, err
	}

	run, err := c.executor.RunOne(ctx, alloc.Symbol, storeSource(ctx, c.deps.Store, key), s)
	if err != nil {
		return nil, err
	}

	if run.Frame.Len() == 0 {
		return nil, nil
	}

	trades, err := c.evaluator.Trades(run.Frame)
	if err != nil {
		return nil, err
	}

	out := make([]portfolio.WeightedTrade, len(trades))
	for i, t := range trades {
		out[i] = portfolio.WeightedTrade{
			Symbol:   alloc.Symbol,
			Strategy: sig.Strategy,
			Weight:   alloc.Weight * sig.Weight,
			Trade:    t,
		}
	}

	return out, nil
}
