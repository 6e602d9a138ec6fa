package pipeline_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/evaluation"
	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/internal/pipeline"
	"github.com/ashourz/AlgoRoyale-sub002/internal/portfolio"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/mocks"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const symbol = "AAPL"

type PipelineTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	client   *mocks.MockHistoricalBarClient
	store    *store.Store
	deps     pipeline.Deps
	factory  *strategy.Factory
	template strategy.Template
	bars     map[string][]types.Bar
	train    types.Window
	test     types.Window
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func (suite *PipelineTestSuite) SetupTest() {
	log := logger.NewNopLogger()

	st, err := store.New(store.Config{BaseDir: suite.T().TempDir(), MaxRowsPerFile: 1000}, log, nil)
	suite.Require().NoError(err)

	suite.ctrl = gomock.NewController(suite.T())
	suite.client = mocks.NewMockHistoricalBarClient(suite.ctrl)
	suite.store = st
	suite.deps = pipeline.Deps{Store: st, Logger: log, Concurrency: 2}
	suite.factory = strategy.NewFactory(st, log)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := mocks.DefaultConfig()
	cfg.Symbol = symbol
	cfg.StartTime = start
	cfg.Count = 15 * 24
	suite.bars = map[string][]types.Bar{symbol: mocks.NewDataGenerator(7).Generate(cfg)}

	suite.train = types.MustWindow(start, start.AddDate(0, 0, 9))
	suite.test = types.MustWindow(start.AddDate(0, 0, 10), start.AddDate(0, 0, 14))

	entry, err := condition.Lookup("MovingAverageCrossEntry")
	suite.Require().NoError(err)
	exit, err := condition.Lookup("MovingAverageCrossExit")
	suite.Require().NoError(err)
	engine, err := stateful.Lookup("PositionEngine")
	suite.Require().NoError(err)

	suite.template = strategy.NewTemplate(nil, nil, []condition.Type{entry}, []condition.Type{exit}, optional.Some(engine))
}

func (suite *PipelineTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *PipelineTestSuite) serveBars() {
	suite.client.EXPECT().
		FetchHistoricalBars(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(mocks.ServeBars(suite.bars, 100)).
		AnyTimes()
}

func (suite *PipelineTestSuite) ingest() *pipeline.IngestCoordinator {
	return pipeline.NewIngestCoordinator(suite.deps, marketdata.NewFetcher(suite.client, nil, nil, 1, time.Millisecond))
}

func (suite *PipelineTestSuite) engineer() *pipeline.FeatureCoordinator {
	set := features.DefaultSet()

	return pipeline.NewFeatureCoordinator(suite.deps, features.NewEngineer(set, set.MaxLookback(), nil, nil))
}

func (suite *PipelineTestSuite) optimiser(trials int) *pipeline.SignalOptCoordinator {
	opt, err := pipeline.NewSignalOptCoordinator(suite.deps, suite.factory, []strategy.Template{suite.template}, pipeline.OptimizationSettings{
		NTrials:        trials,
		NStartupTrials: trials,
		Seed:           1,
		Objectives:     []pipeline.Objective{{Metric: types.MetricSharpeRatio, Direction: optimizer.Maximize}},
	})
	suite.Require().NoError(err)

	return opt
}

// lenientEvaluation passes every viability check.
func (suite *PipelineTestSuite) lenientEvaluation() evaluation.Config {
	return evaluation.Config{
		MetricType: evaluation.MetricTypeOptimization,
		MinScore:   1,
		Thresholds: evaluation.Thresholds{
			TotalReturn: math.Inf(-1),
			SharpeRatio: math.Inf(-1),
			WinRate:     0,
			MaxDrawdown: math.Inf(1),
		},
	}
}

func (suite *PipelineTestSuite) prepareFeatures() {
	ctx := context.Background()
	suite.serveBars()

	for _, w := range []types.Window{suite.train, suite.test} {
		suite.Require().NoError(suite.ingest().Run(ctx, []string{symbol}, w))
		suite.Require().NoError(suite.engineer().Run(ctx, []string{symbol}, w))
	}
}

func (suite *PipelineTestSuite) TestIngestWritesPagesAndDone() {
	suite.serveBars()

	suite.Require().NoError(suite.ingest().Run(context.Background(), []string{symbol}, suite.train))

	key := store.DataKey(columns.StageDataIngest, symbol, suite.train)
	suite.True(suite.store.IsDone(key))

	files, err := suite.store.PageFiles(key)
	suite.Require().NoError(err)
	suite.Len(files, 3)

	rows := 0
	for page, err := range suite.store.StreamPages(context.Background(), key, false) {
		suite.Require().NoError(err)
		rows += page.Len()
	}

	suite.Equal(10*24, rows)
}

func (suite *PipelineTestSuite) TestIngestSkipsDoneWindow() {
	suite.serveBars()
	suite.Require().NoError(suite.ingest().Run(context.Background(), []string{symbol}, suite.train))

	// a client without expectations fails the test on any call
	idle := mocks.NewMockHistoricalBarClient(suite.ctrl)
	coordinator := pipeline.NewIngestCoordinator(suite.deps, marketdata.NewFetcher(idle, nil, nil, 1, time.Millisecond))

	suite.Require().NoError(coordinator.Run(context.Background(), []string{symbol}, suite.train))
}

func (suite *PipelineTestSuite) TestIngestFetchFailureWritesSidecar() {
	serve := mocks.ServeBars(suite.bars, 100)

	suite.client.EXPECT().
		FetchHistoricalBars(gomock.Any(), symbol, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, s string, start, end time.Time, token optional.Option[string]) (marketdata.BarPage, error) {
			if token.IsSome() {
				return marketdata.BarPage{}, fmt.Errorf("broker unavailable")
			}

			return serve(ctx, s, start, end, token)
		}).
		AnyTimes()

	suite.Require().NoError(suite.ingest().Run(context.Background(), []string{symbol}, suite.train))

	key := store.DataKey(columns.StageDataIngest, symbol, suite.train)
	suite.False(suite.store.IsDone(key))

	files, err := suite.store.PageFiles(key)
	suite.Require().NoError(err)
	suite.Require().Len(files, 1)

	_, err = os.Stat(filepath.Join(filepath.Dir(files[0]), "fetch.error"))
	suite.NoError(err)
}

func (suite *PipelineTestSuite) TestFeaturesRequireCompletedIngest() {
	suite.Require().NoError(suite.engineer().Run(context.Background(), []string{symbol}, suite.train))

	suite.False(suite.store.IsDone(store.DataKey(columns.StageFeatures, symbol, suite.train)))
}

func (suite *PipelineTestSuite) TestFeaturesKeepInputColumns() {
	suite.prepareFeatures()

	key := store.DataKey(columns.StageFeatures, symbol, suite.train)
	suite.True(suite.store.IsDone(key))

	want := features.NewEngineer(features.DefaultSet(), 0, nil, nil).OutputColumns()
	rows := 0

	for page, err := range suite.store.StreamPages(context.Background(), key, false) {
		suite.Require().NoError(err)
		suite.Empty(page.Missing(want))
		rows += page.Len()
	}

	suite.Equal(10*24, rows)
}

func (suite *PipelineTestSuite) TestOptimiseThenTest() {
	ctx := context.Background()
	suite.prepareFeatures()

	suite.Require().NoError(suite.optimiser(3).Run(ctx, []string{symbol}, suite.train))

	name := suite.template.Name()
	suite.True(suite.store.IsDone(store.StrategyKey(columns.StageSignalOpt, name, symbol, suite.train)))

	path := artefact.OptimizationPath(suite.store, name, symbol, suite.train)
	result, err := artefact.ReadOptimization(suite.store, path)
	suite.Require().NoError(err)

	entry, ok := result[suite.train.ID()]
	suite.Require().True(ok)
	suite.Require().NotNil(entry.Optimization)
	suite.Nil(entry.Test)
	suite.Equal(suite.train.Dates(), entry.Window)
	suite.Equal(3, entry.Optimization.Meta.NTrials)
	suite.Equal(symbol, entry.Optimization.Meta.Symbol)
	suite.False(entry.Optimization.Meta.MultiObjective)

	direction, _ := entry.Optimization.Meta.Direction.First()
	suite.Equal("maximize", direction)

	params, ok := entry.Optimization.BestParams.First()
	suite.Require().True(ok)
	suite.Len(params.EntryConditions, 1)

	m, err := strategy.ReadStrategyMap(suite.store)
	suite.Require().NoError(err)
	suite.Equal([]string{name}, m.Names())

	tester := pipeline.NewSignalTestCoordinator(suite.deps, suite.factory, []string{name})
	suite.Require().NoError(tester.Run(ctx, []string{symbol}, suite.train, suite.test))

	suite.True(suite.store.IsDone(store.StrategyKey(columns.StageSignalTest, name, symbol, suite.test)))

	result, err = artefact.ReadOptimization(suite.store, path)
	suite.Require().NoError(err)

	entry = result[suite.train.ID()]
	suite.Require().NotNil(entry.Optimization)
	suite.Require().NotNil(entry.Test)
	suite.Equal(suite.test.Dates(), entry.Test.Window)
	suite.GreaterOrEqual(entry.Test.Metrics.MaxDrawdown, 0.0)
}

func (suite *PipelineTestSuite) TestTesterSkipsCompletedPairs() {
	ctx := context.Background()
	suite.prepareFeatures()

	suite.Require().NoError(suite.optimiser(3).Run(ctx, []string{symbol}, suite.train))

	name := suite.template.Name()
	tester := pipeline.NewSignalTestCoordinator(suite.deps, suite.factory, []string{name})
	suite.Require().NoError(tester.Run(ctx, []string{symbol}, suite.train, suite.test))
	suite.Require().True(suite.store.IsDone(store.StrategyKey(columns.StageSignalTest, name, symbol, suite.test)))

	// A recomputed test would replace this section.
	path := artefact.OptimizationPath(suite.store, name, symbol, suite.train)
	marker := artefact.Test{Metrics: types.Metrics{TotalReturn: 42}, Window: suite.test.Dates()} //nolint:exhaustruct
	suite.Require().NoError(artefact.UpdateSection(ctx, suite.store, path, suite.train, artefact.SectionTest, marker))

	suite.Require().NoError(pipeline.NewSignalTestCoordinator(suite.deps, suite.factory, []string{name}).
		Run(ctx, []string{symbol}, suite.train, suite.test))

	result, err := artefact.ReadOptimization(suite.store, path)
	suite.Require().NoError(err)
	suite.Require().NotNil(result[suite.train.ID()].Test)
	suite.InDelta(42.0, result[suite.train.ID()].Test.Metrics.TotalReturn, 1e-12)
}

func (suite *PipelineTestSuite) TestOptimisationIsNotRepeated() {
	ctx := context.Background()
	suite.prepareFeatures()

	suite.Require().NoError(suite.optimiser(2).Run(ctx, []string{symbol}, suite.train))

	path := artefact.OptimizationPath(suite.store, suite.template.Name(), symbol, suite.train)
	before, err := os.ReadFile(path)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.optimiser(2).Run(ctx, []string{symbol}, suite.train))

	after, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Equal(before, after)
}

func (suite *PipelineTestSuite) TestOptimiserRejectsUnknownMetric() {
	_, err := pipeline.NewSignalOptCoordinator(suite.deps, suite.factory, nil, pipeline.OptimizationSettings{
		NTrials:    1,
		Objectives: []pipeline.Objective{{Metric: "alpha", Direction: optimizer.Maximize}},
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *PipelineTestSuite) TestTesterWritesSidecarOnUnknownClass() {
	ctx := context.Background()
	name := "Broken"
	path := artefact.OptimizationPath(suite.store, name, symbol, suite.train)

	bad := strategy.BestParams{
		EntryConditions: []strategy.ClassParams{{"NoSuchEntry": {}}},
		ExitConditions:  []strategy.ClassParams{},
		TrendConditions: []strategy.ClassParams{},
	}
	section := artefact.Optimization{Strategy: name, BestValue: artefact.One(1.0), BestParams: artefact.One(bad)}
	suite.Require().NoError(artefact.UpdateSection(ctx, suite.store, path, suite.train, artefact.SectionOptimization, section))

	tester := pipeline.NewSignalTestCoordinator(suite.deps, suite.factory, []string{name})
	suite.Require().NoError(tester.Run(ctx, []string{symbol}, suite.train, suite.test))

	key := store.StrategyKey(columns.StageSignalTest, name, symbol, suite.test)
	suite.False(suite.store.IsDone(key))

	dir, err := suite.store.DirectoryPath(key)
	suite.Require().NoError(err)

	_, err = os.Stat(filepath.Join(dir, "rehydrate.error"))
	suite.NoError(err)
}

func (suite *PipelineTestSuite) TestTesterSkipsMissingOptimisation() {
	tester := pipeline.NewSignalTestCoordinator(suite.deps, suite.factory, []string{"Unknown"})
	suite.Require().NoError(tester.Run(context.Background(), []string{symbol}, suite.train, suite.test))

	suite.False(suite.store.IsDone(store.StrategyKey(columns.StageSignalTest, "Unknown", symbol, suite.test)))
}

func (suite *PipelineTestSuite) TestEvaluationWritesSymbolSummary() {
	ctx := context.Background()
	suite.prepareFeatures()
	suite.Require().NoError(suite.optimiser(2).Run(ctx, []string{symbol}, suite.train))

	coordinator := pipeline.NewEvaluationCoordinator(suite.deps, suite.lenientEvaluation())

	summaries, err := coordinator.Run(ctx, []string{symbol})
	suite.Require().NoError(err)
	suite.Require().Len(summaries, 1)
	suite.Equal(symbol, summaries[0].Symbol)
	suite.Require().Len(summaries[0].Strategies, 1)
	suite.InDelta(1.0, summaries[0].Strategies[0].Weight, 1e-9)

	ev, err := evaluation.ReadEvaluation(suite.store, suite.template.Name(), symbol)
	suite.Require().NoError(err)
	suite.Equal(1, ev.NWindows)
	suite.True(ev.IsViable)
}

func (suite *PipelineTestSuite) TestPortfolioOptimiseAndTest() {
	ctx := context.Background()
	suite.prepareFeatures()
	suite.Require().NoError(suite.optimiser(2).Run(ctx, []string{symbol}, suite.train))

	_, err := pipeline.NewEvaluationCoordinator(suite.deps, suite.lenientEvaluation()).Run(ctx, []string{symbol})
	suite.Require().NoError(err)

	coordinator := pipeline.NewPortfolioCoordinator(suite.deps, portfolio.NewViabilityWeighted(1), suite.factory)

	allocation, err := coordinator.Optimize(ctx, []string{symbol, "MSFT"}, []types.Window{suite.test})
	suite.Require().NoError(err)
	suite.Require().Len(allocation, 1)
	suite.InDelta(1.0, allocation.Total(), 1e-9)

	suite.Require().NoError(coordinator.Test(ctx, []types.Window{suite.test}))

	var doc artefact.Portfolio
	suite.Require().NoError(suite.store.ReadJSON(artefact.PortfolioPath(suite.store, columns.StagePortfolioTest, suite.test), &doc))
	suite.Equal(suite.test.Dates(), doc.Window)
	suite.Require().NotNil(doc.Metrics)
	suite.Equal(doc.Trades, doc.Metrics.NumberOfTrades)
	suite.GreaterOrEqual(doc.Metrics.WinRate, 0.0)
	suite.LessOrEqual(doc.Metrics.WinRate, 1.0)
}

func (suite *PipelineTestSuite) TestCanceledContextStopsRun() {
	suite.serveBars()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := suite.ingest().Run(ctx, []string{symbol}, suite.train)
	suite.Error(err)
	suite.False(suite.store.IsDone(store.DataKey(columns.StageDataIngest, symbol, suite.train)))
}
