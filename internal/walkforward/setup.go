package walkforward

import (
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/config"
	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/internal/pipeline"
	"github.com/ashourz/AlgoRoyale-sub002/internal/portfolio"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
)

// Setup holds what Build needs besides the configuration. A nil Client disables ingest.
type Setup struct {
	Config   *config.Config
	Store    *store.Store
	Client   marketdata.HistoricalBarClient
	Logger   *logger.Logger
	Recorder *metrics.Recorder
}

// Build wires every coordinator from the configuration and returns the driver with its
// window pairs.
func Build(s Setup) (*Driver, []WindowPair, error) {
	cfg := s.Config
	if s.Logger == nil {
		s.Logger = logger.NewNopLogger()
	}

	start, end, err := cfg.Schedule.Bounds()
	if err != nil {
		return nil, nil, err
	}

	pairs, err := GenerateWindows(Schedule{
		Start:     start,
		End:       end,
		TrainDays: cfg.Schedule.TrainDays,
		TestDays:  cfg.Schedule.TestDays,
		StepDays:  cfg.Schedule.StepDays,
	})
	if err != nil {
		return nil, nil, err
	}

	combinator, err := cfg.Combinator.Build()
	if err != nil {
		return nil, nil, err
	}

	templates := slices.Collect(combinator.Templates())
	if len(templates) == 0 {
		return nil, nil, errors.New(errors.ErrCodeConfig, "combinator produced no strategy templates")
	}

	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = t.Name()
	}

	objectives := make([]pipeline.Objective, len(cfg.Optimization.Objectives))
	for i, o := range cfg.Optimization.Objectives {
		d, err := optimizer.ParseDirection(o.Direction)
		if err != nil {
			return nil, nil, err
		}

		objectives[i] = pipeline.Objective{Metric: o.Metric, Direction: d}
	}

	deps := pipeline.Deps{
		Store:       s.Store,
		Logger:      s.Logger,
		Recorder:    s.Recorder,
		Concurrency: cfg.Concurrency,
	}
	factory := strategy.NewFactory(s.Store, s.Logger)

	opt, err := pipeline.NewSignalOptCoordinator(deps, factory, templates, pipeline.OptimizationSettings{
		NTrials:        cfg.Optimization.NTrials,
		NStartupTrials: cfg.Optimization.NStartupTrials,
		Seed:           cfg.Optimization.Seed,
		Objectives:     objectives,
	})
	if err != nil {
		return nil, nil, err
	}

	stages := Stages{
		Ingest:     nil,
		Features:   pipeline.NewFeatureCoordinator(deps, features.NewEngineer(features.DefaultSet(), cfg.Features.MaxLookback, s.Logger, s.Recorder)),
		SignalOpt:  opt,
		SignalTest: pipeline.NewSignalTestCoordinator(deps, factory, names),
		Evaluation: pipeline.NewEvaluationCoordinator(deps, cfg.Evaluation.Settings()),
		Portfolio:  pipeline.NewPortfolioCoordinator(deps, portfolio.NewViabilityWeighted(cfg.Portfolio.MaxSymbolWeight), factory),
	}

	if s.Client != nil {
		fetcher := marketdata.NewFetcher(s.Client, s.Logger, s.Recorder, cfg.Ingest.Attempts, cfg.Ingest.Backoff)
		stages.Ingest = pipeline.NewIngestCoordinator(deps, fetcher)
	}

	driver, err := NewDriver(cfg.Watchlist, stages, s.Logger)
	if err != nil {
		return nil, nil, err
	}

	return driver, pairs, nil
}
