package walkforward

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/pipeline"
	"github.com/ashourz/AlgoRoyale-sub002/internal/portfolio"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// Stages are the coordinators run by the driver. A nil Ingest runs on previously
// ingested data; a nil Portfolio skips the portfolio stages.
type Stages struct {
	Ingest     *pipeline.IngestCoordinator
	Features   *pipeline.FeatureCoordinator
	SignalOpt  *pipeline.SignalOptCoordinator
	SignalTest *pipeline.SignalTestCoordinator
	Evaluation *pipeline.EvaluationCoordinator
	Portfolio  *pipeline.PortfolioCoordinator
}

// Report summarises a finished run.
type Report struct {
	Pairs      int
	Summaries  []artefact.SymbolSignals
	Allocation portfolio.Allocation
	Elapsed    time.Duration
}

// Driver runs the stage chain over window pairs in order.
type Driver struct {
	symbols    []string
	stages     Stages
	logger     *logger.Logger
	onPairDone func(index int, pair WindowPair)
}

func NewDriver(symbols []string, stages Stages, log *logger.Logger) (*Driver, error) {
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeMissingParameter, "no symbols to process")
	}

	if stages.Features == nil || stages.SignalOpt == nil || stages.SignalTest == nil || stages.Evaluation == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "features, signal optimisation, signal test and evaluation stages are required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Driver{
		symbols: symbols,
		stages:  stages,
		logger:  log,
	}, nil
}

// OnPairDone registers a callback invoked after each window pair.
func (d *Driver) OnPairDone(fn func(index int, pair WindowPair)) {
	d.onPairDone = fn
}

// Run processes every pair in order, then evaluates across windows and builds the
// portfolio. Completed units are skipped, so a rerun only redoes unfinished work.
func (d *Driver) Run(ctx context.Context, pairs []WindowPair) (Report, error) {
	started := time.Now()

	for i, pair := range pairs {
		if err := d.RunPair(ctx, pair); err != nil {
			return Report{}, err
		}

		if d.onPairDone != nil {
			d.onPairDone(i, pair)
		}
	}

	summaries, err := d.Evaluate(ctx)
	if err != nil {
		return Report{}, err
	}

	allocation, err := d.Portfolio(ctx, pairs)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Pairs:      len(pairs),
		Summaries:  summaries,
		Allocation: allocation,
		Elapsed:    time.Since(started),
	}

	d.logger.Info("Walk-forward run finished",
		zap.Int("pairs", report.Pairs),
		zap.Int("symbols", len(summaries)),
		zap.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}

// RunPair runs ingest and features on both windows, optimisation on the train window
// and testing on the test window.
func (d *Driver) RunPair(ctx context.Context, pair WindowPair) error {
	log := d.logger.With(zap.String("train_window", pair.Train.ID()), zap.String("test_window", pair.Test.ID()))
	log.Info("Processing window pair")

	if d.stages.Ingest != nil {
		if err := d.stages.Ingest.Run(ctx, d.symbols, pair.Train); err != nil {
			return err
		}

		if err := d.stages.Ingest.Run(ctx, d.symbols, pair.Test); err != nil {
			return err
		}
	}

	if err := d.stages.Features.Run(ctx, d.symbols, pair.Train); err != nil {
		return err
	}

	if err := d.stages.Features.Run(ctx, d.symbols, pair.Test); err != nil {
		return err
	}

	if err := d.stages.SignalOpt.Run(ctx, d.symbols, pair.Train); err != nil {
		return err
	}

	return d.stages.SignalTest.Run(ctx, d.symbols, pair.Train, pair.Test)
}

// Evaluate writes the cross-window evaluations and symbol summaries.
func (d *Driver) Evaluate(ctx context.Context) ([]artefact.SymbolSignals, error) {
	return d.stages.Evaluation.Run(ctx, d.symbols)
}

// Portfolio allocates the symbol summaries and replays the allocation on every test
// window. It does nothing without a portfolio stage.
func (d *Driver) Portfolio(ctx context.Context, pairs []WindowPair) (portfolio.Allocation, error) {
	if d.stages.Portfolio == nil {
		return nil, nil
	}

	windows := TestWindows(pairs)

	allocation, err := d.stages.Portfolio.Optimize(ctx, d.symbols, windows)
	if err != nil {
		return nil, err
	}

	if err := d.stages.Portfolio.Test(ctx, windows); err != nil {
		return nil, err
	}

	return allocation, nil
}
