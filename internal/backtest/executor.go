package backtest

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// PageSource opens a fresh stream over the feature pages of one symbol.
type PageSource func() iter.Seq2[*frame.Frame, error]

// DoneChecker reports whether a (symbol, strategy) pair already has completed output.
type DoneChecker func(symbol string, s *strategy.SignalStrategy) bool

// Result is the signal frame of one (symbol, strategy) pair. Frame holds the
// concatenated signal pages and is empty when every page was skipped.
type Result struct {
	Symbol   string
	Strategy *strategy.SignalStrategy
	Frame    *frame.Frame
	Pages    int
	Skipped  int
}

// RequiredBarColumns must be present and valid on every page.
func RequiredBarColumns() []string {
	return []string{columns.Open, columns.High, columns.Low, columns.Close, columns.Volume}
}

// Executor runs strategies over paged feature data.
type Executor struct {
	logger   *logger.Logger
	recorder *metrics.Recorder
	stage    columns.Stage
	done     DoneChecker

	mu        sync.Mutex
	processed map[string]struct{}
}

// NewExecutor creates an executor. stage labels logs and metrics; done may be nil.
func NewExecutor(log *logger.Logger, recorder *metrics.Recorder, stage columns.Stage, done DoneChecker) *Executor {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Executor{
		logger:    log,
		recorder:  recorder,
		stage:     stage,
		done:      done,
		mu:        sync.Mutex{},
		processed: make(map[string]struct{}),
	}
}

// Run yields one Result per (symbol, strategy) pair, symbols in sorted order and
// strategies in the given order. Pairs reported done, or already run by this executor,
// are not yielded. A cancelled context or a failing source ends the run with the error.
func (e *Executor) Run(ctx context.Context, symbols map[string]PageSource, strategies []*strategy.SignalStrategy) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		names := make([]string, 0, len(symbols))
		for name := range symbols {
			names = append(names, name)
		}

		slices.Sort(names)

		for _, symbol := range names {
			for _, s := range strategies {
				if err := ctx.Err(); err != nil {
					yield(Result{}, errors.Wrap(errors.ErrCodeCanceled, "backtest canceled", err))

					return
				}

				if e.skip(symbol, s) {
					continue
				}

				result, err := e.RunOne(ctx, symbol, symbols[symbol], s)
				if err != nil {
					yield(Result{}, err)

					return
				}

				if !yield(result, nil) {
					return
				}
			}
		}
	}
}

func (e *Executor) skip(symbol string, s *strategy.SignalStrategy) bool {
	if e.done != nil && e.done(symbol, s) {
		e.logger.Debug("Skipping completed pair",
			zap.String("stage", e.stage.String()),
			zap.String("symbol", symbol),
			zap.String("strategy", s.Name()),
		)

		return true
	}

	key := symbol + "|" + s.Identity()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.processed[key]; ok {
		return true
	}

	e.processed[key] = struct{}{}

	return false
}

// RunOne streams the pages of source through a fresh pager of s. Invalid pages are
// logged and skipped.
func (e *Executor) RunOne(ctx context.Context, symbol string, source PageSource, s *strategy.SignalStrategy) (Result, error) {
	log := e.logger.Unit(e.stage.String(), s.Name(), symbol, "")
	pager := s.NewPager(symbol)
	required := append(s.RequiredColumns(), RequiredBarColumns()...)

	result := Result{
		Symbol:   symbol,
		Strategy: s,
		Frame:    nil,
		Pages:    0,
		Skipped:  0,
	}

	var outputs []*frame.Frame

	for page, err := range source() {
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, errors.Wrap(errors.ErrCodeCanceled, "backtest canceled", err)
			}

			return Result{}, err
		}

		if err := ValidatePage(page, required); err != nil {
			log.Warn("Skipping invalid page", zap.Int("rows", page.Len()), zap.Error(err))
			e.recorder.PageSkipped(e.stage.String(), reason(err))
			result.Skipped++

			continue
		}

		out, err := pager.Process(page)
		if err != nil {
			log.Warn("Skipping page that failed signal generation", zap.Error(err))
			e.recorder.PageSkipped(e.stage.String(), reason(err))
			result.Skipped++

			continue
		}

		outputs = append(outputs, out)
		result.Pages++
	}

	if len(outputs) > 0 {
		combined, err := frame.Concat(outputs...)
		if err != nil {
			return Result{}, fmt.Errorf("failed to concatenate signal pages: %w", err)
		}

		result.Frame = combined
	}

	log.Debug("Backtest pair finished", zap.Int("pages", result.Pages), zap.Int("skipped", result.Skipped))

	return result, nil
}

// ValidatePage checks required columns and data quality: positive closes, set and
// strictly increasing timestamps, and no NaN in the required bar columns.
func ValidatePage(f *frame.Frame, required []string) error {
	if f == nil || f.Len() == 0 {
		return errors.New(errors.ErrCodeInsufficientData, "empty page")
	}

	if missing := f.Missing(required); len(missing) > 0 {
		return errors.Newf(errors.ErrCodeMissingColumns, "page missing columns %v", missing)
	}

	index := f.Index()
	for i, ts := range index {
		if ts.IsZero() {
			return errors.Newf(errors.ErrCodeInvalidTimestamp, "row %d has no timestamp", i)
		}

		if i > 0 && !ts.After(index[i-1]) {
			return errors.Newf(errors.ErrCodeInvalidTimestamp, "timestamps not increasing at row %d", i)
		}
	}

	for _, name := range RequiredBarColumns() {
		values, ok := f.Float(name)
		if !ok {
			return errors.Newf(errors.ErrCodeInvalidType, "column %s is not numeric", name)
		}

		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Newf(errors.ErrCodeNullValues, "%s is null at row %d", name, i)
			}

			if name == columns.Close && v <= 0 {
				return errors.Newf(errors.ErrCodeNonPositivePrice, "close %v at row %d is not positive", v, i)
			}
		}
	}

	return nil
}

func reason(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrCodeMissingColumns:
		return "missing_columns"
	case errors.ErrCodeNonPositivePrice:
		return "non_positive_price"
	case errors.ErrCodeNullValues:
		return "null_values"
	case errors.ErrCodeInvalidTimestamp:
		return "invalid_timestamp"
	case errors.ErrCodeInsufficientData:
		return "empty"
	default:
		return "invalid"
	}
}

// Outcome scores a result. A pair without signal rows is skipped.
func (e *Evaluator) Outcome(r Result) Outcome {
	if r.Frame.Len() == 0 {
		return Skipped("no valid pages")
	}

	m, err := e.Evaluate(r.Frame)
	if err != nil {
		return Failed(err.Error())
	}

	return OK(m)
}
