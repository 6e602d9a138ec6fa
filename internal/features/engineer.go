// Package features turns bar pages into feature pages.
package features

import (
	"context"
	"iter"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxLookback is the warm-up carried across pages when none is configured.
const DefaultMaxLookback = 200

// FeatureFunc maps a bar frame to a feature frame of the same length.
type FeatureFunc func(f *frame.Frame) (*frame.Frame, error)

// Default returns the feature function of the default set.
func Default() FeatureFunc {
	return DefaultSet().Apply
}

// Engineer streams feature pages, carrying the tail of the previous input page so
// windowed features are computed on the same history a single-page run would see.
type Engineer struct {
	fn            FeatureFunc
	maxLookback   int
	inputColumns  []string
	outputColumns []string
	logger        *logger.Logger
	recorder      *metrics.Recorder
}

// NewEngineer creates an engineer for the given set. maxLookback below one falls back to
// DefaultMaxLookback.
func NewEngineer(set *Set, maxLookback int, log *logger.Logger, recorder *metrics.Recorder) *Engineer {
	if maxLookback < 1 {
		maxLookback = DefaultMaxLookback
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engineer{
		fn:            set.Apply,
		maxLookback:   maxLookback,
		inputColumns:  columns.StageFeatures.InputColumns(),
		outputColumns: append(columns.BarColumns(), set.Columns()...),
		logger:        log,
		recorder:      recorder,
	}
}

// WithFunc replaces the feature function while keeping the column contract.
func (e *Engineer) WithFunc(fn FeatureFunc, outputColumns []string) *Engineer {
	clone := *e
	clone.fn = fn
	clone.outputColumns = slices.Clone(outputColumns)

	return &clone
}

// MaxLookback is the number of rows carried between pages.
func (e *Engineer) MaxLookback() int {
	return e.maxLookback
}

// OutputColumns are the columns every yielded page contains.
func (e *Engineer) OutputColumns() []string {
	return slices.Clone(e.outputColumns)
}

// Stream applies the feature function page by page. Pages failing input or output
// validation are logged and dropped; upstream errors are forwarded. The carried history
// is the last MaxLookback input rows seen so far, never engineered rows.
func (e *Engineer) Stream(ctx context.Context, pages iter.Seq2[*frame.Frame, error]) iter.Seq2[*frame.Frame, error] {
	return func(yield func(*frame.Frame, error) bool) {
		var buffer *frame.Frame

		pageIndex := 0

		for page, err := range pages {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)

				return
			}

			if err != nil {
				if !yield(nil, err) {
					return
				}

				continue
			}

			pageIndex++

			if missing := page.Missing(e.inputColumns); len(missing) > 0 {
				e.logger.Warn("Dropping feature input page with missing columns",
					zap.Int("page", pageIndex),
					zap.Strings("missing", missing),
				)
				e.recorder.PageSkipped(string(columns.StageFeatures), "missing_input_columns")

				continue
			}

			extended := page
			carried := 0

			if buffer != nil && buffer.Len() > 0 {
				joined, err := frame.Concat(buffer, page)
				if err != nil {
					e.logger.Warn("Dropping feature input page that does not match previous page",
						zap.Int("page", pageIndex),
						zap.Error(err),
					)
					e.recorder.PageSkipped(string(columns.StageFeatures), "schema_mismatch")

					continue
				}

				extended = joined
				carried = buffer.Len()
			}

			engineered, err := e.fn(extended)
			if err != nil {
				e.logger.Warn("Feature function failed",
					zap.Int("page", pageIndex),
					zap.Error(err),
				)
				e.recorder.PageSkipped(string(columns.StageFeatures), "feature_error")

				continue
			}

			if missing := engineered.Missing(e.outputColumns); len(missing) > 0 {
				e.logger.Warn("Dropping feature output page with missing columns",
					zap.Int("page", pageIndex),
					zap.Strings("missing", missing),
				)
				e.recorder.PageSkipped(string(columns.StageFeatures), "missing_output_columns")

				continue
			}

			buffer = extended.Tail(e.maxLookback)

			if !yield(engineered.Slice(carried, engineered.Len()), nil) {
				return
			}
		}
	}
}

// Page computes features for a single page with an explicit history prefix, as the
// online runtime does for each new bar.
func (e *Engineer) Page(history, page *frame.Frame) (*frame.Frame, error) {
	extended := page
	carried := 0

	if history != nil && history.Len() > 0 {
		tail := history.Tail(e.maxLookback)

		joined, err := frame.Concat(tail, page)
		if err != nil {
			return nil, err
		}

		extended = joined
		carried = tail.Len()
	}

	engineered, err := e.fn(extended)
	if err != nil {
		return nil, err
	}

	if missing := engineered.Missing(e.outputColumns); len(missing) > 0 {
		return nil, errors.Newf(errors.ErrCodeMissingColumns, "feature output missing columns %v", missing)
	}

	return engineered.Slice(carried, engineered.Len()), nil
}
