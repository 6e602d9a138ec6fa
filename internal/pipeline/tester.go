package pipeline

import (
	"context"
	"maps"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/backtest"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// SignalTestCoordinator replays the best parameters of each train window on the test
// window that follows it.
type SignalTestCoordinator struct {
	deps       Deps
	factory    *strategy.Factory
	strategies []string
	evaluator  *backtest.Evaluator
}

func NewSignalTestCoordinator(deps Deps, factory *strategy.Factory, strategies []string) *SignalTestCoordinator {
	return &SignalTestCoordinator{
		deps:       deps.withDefaults(),
		factory:    factory,
		strategies: strategies,
		evaluator:  backtest.NewEvaluator(),
	}
}

// testUnit is one (strategy, symbol) pair waiting for its backtest.
type testUnit struct {
	name    string
	key     store.Key
	log     *logger.Logger
	started time.Time
}

// Run tests every strategy of every symbol on test with the parameters chosen on train.
func (c *SignalTestCoordinator) Run(ctx context.Context, symbols []string, train, test types.Window) error {
	return forEach(ctx, c.deps.Concurrency, symbols, func(ctx context.Context, symbol string) error {
		return c.testSymbol(ctx, symbol, train, test)
	})
}

// testSymbol rehydrates the strategies of symbol and backtests them in one executor
// run. The executor leaves out pairs whose test is already done.
func (c *SignalTestCoordinator) testSymbol(ctx context.Context, symbol string, train, test types.Window) error {
	st := c.deps.Store
	featureKey := store.DataKey(columns.StageFeatures, symbol, test)

	var strategies []*strategy.SignalStrategy

	units := map[*strategy.SignalStrategy]testUnit{}

	for _, name := range c.strategies {
		u := testUnit{
			name:    name,
			key:     store.StrategyKey(columns.StageSignalTest, name, symbol, test),
			log:     c.deps.Logger.Unit(columns.StageSignalTest.String(), name, symbol, test.ID()),
			started: time.Now(),
		}

		s, result, err := c.prepare(u, train)
		if s == nil {
			if err := c.deps.finish(u.log, columns.StageSignalTest, u.started, result, err); err != nil {
				return err
			}

			continue
		}

		strategies = append(strategies, s)
		units[s] = u
	}

	if len(strategies) == 0 {
		return nil
	}

	if !st.IsDone(featureKey) {
		for _, s := range strategies {
			u := units[s]
			u.log.Info("Skipping window without completed features")

			if err := c.deps.finish(u.log, columns.StageSignalTest, u.started, unitSkipped, nil); err != nil {
				return err
			}
		}

		return nil
	}

	executor := backtest.NewExecutor(c.deps.Logger, c.deps.Recorder, columns.StageSignalTest,
		func(_ string, s *strategy.SignalStrategy) bool {
			return st.IsDone(units[s].key)
		})

	pending := maps.Clone(units)
	sources := map[string]backtest.PageSource{symbol: storeSource(ctx, st, featureKey)}

	for run, err := range executor.Run(ctx, sources, strategies) {
		if err != nil {
			// the source failed, which fails every pair still waiting on it
			for _, u := range pending {
				if ferr := c.deps.finish(u.log, columns.StageSignalTest, u.started, "", err); ferr != nil {
					return ferr
				}
			}

			return nil
		}

		u := units[run.Strategy]
		delete(pending, run.Strategy)

		result, err := c.record(ctx, u, run, train, test)
		if err := c.deps.finish(u.log, columns.StageSignalTest, u.started, result, err); err != nil {
			return err
		}
	}

	for s, u := range pending {
		result, err := unitCached, error(nil)

		if st.IsDone(u.key) {
			u.log.Debug("Test already done")
		} else {
			// same parameters as a pair the executor already ran under another name
			var run backtest.Result

			run, err = executor.RunOne(ctx, symbol, sources[symbol], s)
			if err == nil {
				result, err = c.record(ctx, u, run, train, test)
			}
		}

		if err := c.deps.finish(u.log, columns.StageSignalTest, u.started, result, err); err != nil {
			return err
		}
	}

	return nil
}

// prepare reads the train window's best parameters and rehydrates them. A nil strategy
// ends the unit with the returned result or error.
func (c *SignalTestCoordinator) prepare(u testUnit, train types.Window) (*strategy.SignalStrategy, unitResult, error) {
	st := c.deps.Store

	result, err := artefact.ReadOptimization(st, artefact.OptimizationPath(st, u.name, u.key.Symbol, train))
	if err != nil {
		return nil, "", err
	}

	entry, ok := result[train.ID()]
	if !ok || entry.Optimization == nil {
		u.log.Debug("Skipping strategy without optimisation result", zap.String("train_window", train.ID()))

		return nil, unitSkipped, nil
	}

	params, ok := entry.Optimization.BestParams.First()
	if !ok {
		u.log.Debug("Skipping optimisation result without parameters")

		return nil, unitSkipped, nil
	}

	s, err := c.factory.Rehydrate(params)
	if err != nil {
		c.deps.sidecar(u.log, u.key, "rehydrate", err)

		return nil, "", err
	}

	return s, "", nil
}

// record scores one backtest and writes the test section and DONE marker.
func (c *SignalTestCoordinator) record(ctx context.Context, u testUnit, run backtest.Result, train, test types.Window) (unitResult, error) {
	st := c.deps.Store
	outcome := c.evaluator.Outcome(run)

	switch outcome.Kind {
	case backtest.OutcomeSkipped:
		u.log.Info("Skipping test without signals", zap.String("reason", outcome.Reason))

		return unitSkipped, nil
	case backtest.OutcomeFailed:
		err := errors.New(errors.ErrCodeTrialFailed, outcome.Reason)
		c.deps.sidecar(u.log, u.key, "test", err)

		return "", err
	}

	section := artefact.Test{Metrics: outcome.Metrics, Window: test.Dates()}
	path := artefact.OptimizationPath(st, u.name, run.Symbol, train)

	if err := artefact.UpdateSection(ctx, st, path, train, artefact.SectionTest, section); err != nil {
		return "", err
	}

	if err := st.MarkDone(u.key); err != nil {
		return "", err
	}

	u.log.Info("Test finished",
		zap.Float64("total_return", outcome.Metrics.TotalReturn),
		zap.Float64("sharpe_ratio", outcome.Metrics.SharpeRatio),
	)

	return unitDone, nil
}
