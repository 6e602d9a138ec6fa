package evaluation

import (
	"context"
	"slices"
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/internal/artefact"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
)

// Evaluator reads optimisation artefacts from the store and writes evaluation results
// and symbol summaries.
type Evaluator struct {
	store  *store.Store
	cfg    Config
	logger *logger.Logger
}

// NewEvaluator creates an evaluator. cfg.MinScore is used as given; an empty MetricType
// uses MetricTypeOptimization.
func NewEvaluator(st *store.Store, cfg Config, log *logger.Logger) *Evaluator {
	if cfg.MetricType == "" {
		cfg.MetricType = MetricTypeOptimization
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Evaluator{
		store:  st,
		cfg:    cfg,
		logger: log,
	}
}

// Strategies lists the strategies with optimisation artefacts.
func (e *Evaluator) Strategies() ([]string, error) {
	return e.store.ListDirs(string(columns.StageSignalOpt))
}

// Windows reads the completed optimisation windows of (strategy, symbol). A window
// counts once its optimisation DONE marker exists.
func (e *Evaluator) Windows(strategyName, symbol string) ([]Window, error) {
	dirs, err := e.store.ListDirs(string(columns.StageSignalOpt), strategyName, symbol)
	if err != nil {
		return nil, err
	}

	var windows []Window

	for _, dir := range dirs {
		w, err := types.ParseWindowID(dir)
		if err != nil {
			continue
		}

		if !e.store.IsDone(store.StrategyKey(columns.StageSignalOpt, strategyName, symbol, w)) {
			continue
		}

		result, err := artefact.ReadOptimization(e.store, artefact.OptimizationPath(e.store, strategyName, symbol, w))
		if err != nil {
			return nil, err
		}

		if entry, ok := result[w.ID()]; ok {
			windows = append(windows, Window{ID: w.ID(), Entry: entry})
		}
	}

	return windows, nil
}

// EvaluatePair evaluates and persists one (strategy, symbol). It returns None when the
// pair has no completed window.
func (e *Evaluator) EvaluatePair(ctx context.Context, strategyName, symbol string) (optional.Option[artefact.Evaluation], error) {
	log := e.logger.Unit(string(columns.StageSignalEval), strategyName, symbol, "")

	windows, err := e.Windows(strategyName, symbol)
	if err != nil {
		return optional.None[artefact.Evaluation](), err
	}

	result, err := Evaluate(strategyName, symbol, windows, e.cfg)
	if errors.HasCode(err, errors.ErrCodeInsufficientData) {
		log.Debug("No completed windows")

		return optional.None[artefact.Evaluation](), nil
	}

	if err != nil {
		return optional.None[artefact.Evaluation](), err
	}

	if err := e.store.WriteJSON(ctx, artefact.EvaluationPath(e.store, strategyName, symbol), result); err != nil {
		return optional.None[artefact.Evaluation](), err
	}

	log.Info("Evaluation written",
		zap.Int("windows", result.NWindows),
		zap.Float64("viability_score", result.ViabilityScore),
		zap.Bool("is_viable", result.IsViable),
		zap.Float64("param_consistency", result.ParamConsistency),
	)

	return optional.Some(result), nil
}

// EvaluateSymbol evaluates every strategy of symbol and writes its symbol summary. A
// failing strategy is logged, recorded in an error sidecar and left out.
func (e *Evaluator) EvaluateSymbol(ctx context.Context, symbol string, strategies []string) (artefact.SymbolSignals, error) {
	var results []artefact.Evaluation

	for _, name := range strategies {
		if err := ctx.Err(); err != nil {
			return artefact.SymbolSignals{}, errors.Wrap(errors.ErrCodeCanceled, "evaluation canceled", err)
		}

		res, err := e.EvaluatePair(ctx, name, symbol)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeCanceled) {
				return artefact.SymbolSignals{}, err
			}

			e.logger.Unit(string(columns.StageSignalEval), name, symbol, "").Error("Evaluation failed", zap.Error(err))

			if werr := e.store.WriteError(store.SymbolKey(columns.StageSignalEval, optional.Some(name), symbol), "evaluation", err); werr != nil {
				e.logger.Warn("Failed to write error sidecar", zap.Error(werr))
			}

			continue
		}

		if res.IsSome() {
			results = append(results, res.Unwrap())
		}
	}

	summary := SymbolSummary(symbol, results)

	if err := e.store.WriteJSON(ctx, artefact.SymbolSignalsPath(e.store, symbol), summary); err != nil {
		return artefact.SymbolSignals{}, err
	}

	e.logger.Unit(string(columns.StageSymbolSummary), "", symbol, "").Info("Symbol summary written",
		zap.Int("evaluated", len(results)),
		zap.Int("viable", len(summary.Strategies)),
	)

	return summary, nil
}

// SymbolSummary selects the viable evaluations of symbol with weights proportional to
// their viability scores. Weights sum to 1; equal weights are used when every score is 0.
func SymbolSummary(symbol string, results []artefact.Evaluation) artefact.SymbolSignals {
	var viable []artefact.Evaluation

	total := 0.0

	for _, r := range results {
		if r.IsViable {
			viable = append(viable, r)
			total += r.ViabilityScore
		}
	}

	slices.SortFunc(viable, func(a, b artefact.Evaluation) int {
		if a.ViabilityScore != b.ViabilityScore {
			if a.ViabilityScore > b.ViabilityScore {
				return -1
			}

			return 1
		}

		return strings.Compare(a.Strategy, b.Strategy)
	})

	signals := make([]artefact.StrategySignal, len(viable))

	for i, r := range viable {
		weight := 1 / float64(len(viable))
		if total > 0 {
			weight = r.ViabilityScore / total
		}

		signals[i] = artefact.StrategySignal{
			Strategy:       r.Strategy,
			Weight:         weight,
			ViabilityScore: r.ViabilityScore,
			BestParams:     r.MostCommonBestParams,
		}
	}

	return artefact.SymbolSignals{Symbol: symbol, Strategies: signals}
}

// ReadSymbolSignals loads the symbol summary of symbol.
func ReadSymbolSignals(st *store.Store, symbol string) (artefact.SymbolSignals, error) {
	var s artefact.SymbolSignals
	if err := st.ReadJSON(artefact.SymbolSignalsPath(st, symbol), &s); err != nil {
		return artefact.SymbolSignals{}, err
	}

	return s, nil
}

// ReadEvaluation loads the evaluation result of (strategy, symbol).
func ReadEvaluation(st *store.Store, strategyName, symbol string) (artefact.Evaluation, error) {
	var ev artefact.Evaluation
	if err := st.ReadJSON(artefact.EvaluationPath(st, strategyName, symbol), &ev); err != nil {
		return artefact.Evaluation{}, err
	}

	return ev, nil
}
