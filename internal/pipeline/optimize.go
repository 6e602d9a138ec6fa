package pipeline

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/backtest"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// Trial user attributes.
const (
	attrOutcome = "outcome"
	attrMetrics = "metrics"
	attrParams  = "best_params"
)

// Objective is one optimised metric and its direction.
type Objective struct {
	Metric    string
	Direction optimizer.Direction
}

// OptimizationSettings configures every study of the signal optimisation stage.
type OptimizationSettings struct {
	NTrials        int
	NStartupTrials int
	Seed           int64
	Objectives     []Objective
}

// SignalOptCoordinator tunes every strategy template per symbol on the train window.
type SignalOptCoordinator struct {
	deps      Deps
	factory   *strategy.Factory
	templates []strategy.Template
	settings  OptimizationSettings
	executor  *backtest.Executor
	evaluator *backtest.Evaluator
}

func NewSignalOptCoordinator(deps Deps, factory *strategy.Factory, templates []strategy.Template, settings OptimizationSettings) (*SignalOptCoordinator, error) {
	deps = deps.withDefaults()

	if len(settings.Objectives) == 0 {
		return nil, errors.New(errors.ErrCodeMissingParameter, "at least one objective is required")
	}

	for _, o := range settings.Objectives {
		if !types.IsKnownMetric(o.Metric) {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown objective metric %q", o.Metric)
		}

		if _, err := optimizer.ParseDirection(string(o.Direction)); err != nil {
			return nil, err
		}
	}

	if settings.NTrials < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "n_trials must be positive, got %d", settings.NTrials)
	}

	return &SignalOptCoordinator{
		deps:      deps,
		factory:   factory,
		templates: templates,
		settings:  settings,
		executor:  backtest.NewExecutor(deps.Logger, deps.Recorder, columns.StageSignalOpt, nil),
		evaluator: backtest.NewEvaluator(),
	}, nil
}

// Templates returns the strategy templates being optimised.
func (c *SignalOptCoordinator) Templates() []strategy.Template {
	return c.templates
}

// Run records the strategy map and optimises every template for every symbol on train.
func (c *SignalOptCoordinator) Run(ctx context.Context, symbols []string, train types.Window) error {
	if _, err := c.factory.WriteStrategyMap(ctx, c.templates); err != nil {
		return err
	}

	return forEach(ctx, c.deps.Concurrency, symbols, func(ctx context.Context, symbol string) error {
		for _, t := range c.templates {
			log := c.deps.Logger.Unit(columns.StageSignalOpt.String(), t.Name(), symbol, train.ID())
			started := time.Now()
			result, err := c.optimize(ctx, log, symbol, t, train)

			if err := c.deps.finish(log, columns.StageSignalOpt, started, result, err); err != nil {
				return err
			}
		}

		return nil
	})
}

func (c *SignalOptCoordinator) optimize(ctx context.Context, log *logger.Logger, symbol string, t strategy.Template, train types.Window) (unitResult, error) {
	st := c.deps.Store
	key := store.StrategyKey(columns.StageSignalOpt, t.Name(), symbol, train)
	featureKey := store.DataKey(columns.StageFeatures, symbol, train)

	if st.IsDone(key) {
		log.Debug("Optimisation already done")

		return unitCached, nil
	}

	if !st.IsDone(featureKey) {
		log.Info("Skipping window without completed features")

		return unitSkipped, nil
	}

	source, err := memorySource(ctx, st, featureKey)
	if err != nil {
		return "", err
	}

	directions := c.directions()

	study, err := optimizer.NewStudy(directions,
		optimizer.WithSeed(c.settings.Seed),
		optimizer.WithStartupTrials(c.settings.NStartupTrials),
		optimizer.WithLogger(log),
	)
	if err != nil {
		c.deps.sidecar(log, key, "optimization", err)

		return "", err
	}

	started := time.Now()

	if err := study.Optimize(ctx, c.objective(symbol, t, source), c.settings.NTrials); err != nil {
		return "", err
	}

	if !study.HasFiniteTrial() {
		err := errors.Newf(errors.ErrCodeNoCompletedTrials, "no trial of %s on %s produced a score", t.Name(), symbol)
		c.deps.sidecar(log, key, "optimization", err)

		return "", err
	}

	section, err := c.section(symbol, t, study, time.Since(started))
	if err != nil {
		c.deps.sidecar(log, key, "optimization", err)

		return "", err
	}

	path := artefact.OptimizationPath(st, t.Name(), symbol, train)
	if err := artefact.UpdateSection(ctx, st, path, train, artefact.SectionOptimization, section); err != nil {
		return "", err
	}

	if err := st.MarkDone(key); err != nil {
		return "", err
	}

	log.Info("Optimisation finished",
		zap.Int("trials", section.Meta.NTrials),
		zap.Float64s("best_value", section.BestValue.Values),
	)

	return unitDone, nil
}

func (c *SignalOptCoordinator) directions() []optimizer.Direction {
	out := make([]optimizer.Direction, len(c.settings.Objectives))
	for i, o := range c.settings.Objectives {
		out[i] = o.Direction
	}

	return out
}

// objective runs one suggested strategy over the train pages. Runs without a score
// return the worst value of every direction instead of failing the trial.
func (c *SignalOptCoordinator) objective(symbol string, t strategy.Template, source backtest.PageSource) optimizer.ObjectiveFunc {
	return func(ctx context.Context, trial optimizer.Trial) ([]float64, error) {
		s, err := t.Suggest(trial, symbol+"_")
		if err != nil {
			c.deps.Recorder.Trial(string(backtest.OutcomeFailed))

			return nil, errors.Wrap(errors.ErrCodeTrialFailed, "suggest failed", err)
		}

		trial.SetUserAttr(attrParams, s.BestParams())

		result, err := c.executor.RunOne(ctx, symbol, source, s)
		if err != nil {
			c.deps.Recorder.Trial(string(backtest.OutcomeFailed))

			return nil, err
		}

		outcome := c.evaluator.Outcome(result)
		trial.SetUserAttr(attrOutcome, string(outcome.Kind))
		c.deps.Recorder.Trial(string(outcome.Kind))

		if !outcome.IsOK() {
			worst := make([]float64, len(c.settings.Objectives))
			for i, o := range c.settings.Objectives {
				worst[i] = o.Direction.Worst()
			}

			return worst, nil
		}

		trial.SetUserAttr(attrMetrics, outcome.Metrics)

		values := make([]float64, len(c.settings.Objectives))

		for i, o := range c.settings.Objectives {
			v, err := outcome.Metrics.Value(o.Metric)
			if err != nil {
				return nil, err
			}

			values[i] = v
		}

		return values, nil
	}
}

// section builds the optimisation result from the best trial, or from the Pareto
// front of a multi-objective study.
func (c *SignalOptCoordinator) section(symbol string, t strategy.Template, study *optimizer.Study, elapsed time.Duration) (artefact.Optimization, error) {
	var front []optimizer.FrozenTrial

	for _, trial := range study.BestTrials() {
		if _, ok := trial.UserAttrs[attrMetrics]; ok {
			front = append(front, trial)
		}
	}

	if len(front) == 0 {
		return artefact.Optimization{}, errors.Newf(errors.ErrCodeNoCompletedTrials, "no scored trial of %s on %s", t.Name(), symbol)
	}

	params := make([]strategy.BestParams, len(front))

	for i, trial := range front {
		p, ok := trial.UserAttrs[attrParams].(strategy.BestParams)
		if !ok {
			return artefact.Optimization{}, errors.Newf(errors.ErrCodeTrialFailed, "trial %d has no parameters", trial.Number)
		}

		params[i] = p
	}

	best := front[0]

	metrics, ok := best.UserAttrs[attrMetrics].(types.Metrics)
	if !ok {
		return artefact.Optimization{}, errors.Newf(errors.ErrCodeTrialFailed, "trial %d has no metrics", best.Number)
	}

	directions := make([]string, len(c.settings.Objectives))
	for i, o := range c.settings.Objectives {
		directions[i] = string(o.Direction)
	}

	opt := artefact.Optimization{
		Strategy:   t.Name(),
		BestValue:  artefact.One(best.Values[0]),
		BestParams: artefact.One(params[0]),
		Meta: artefact.Meta{
			RunTimeSec:     elapsed.Seconds(),
			NTrials:        len(study.Trials()),
			Symbol:         symbol,
			Direction:      artefact.One(directions[0]),
			MultiObjective: study.MultiObjective(),
		},
		Metrics: metrics,
	}

	if study.MultiObjective() {
		opt.BestValue = artefact.Many(best.Values)
		opt.BestParams = artefact.Many(params)
		opt.Meta.Direction = artefact.Many(directions)
	}

	return opt, nil
}
