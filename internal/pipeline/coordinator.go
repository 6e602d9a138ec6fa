// Package pipeline holds the stage coordinators of the walk-forward run. A coordinator
// processes one unit per (symbol, window) or (strategy, symbol, window), publishes a
// DONE marker when the unit completes, and skips units that are already done.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/backtest"
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators shared by every coordinator.
type Deps struct {
	Store       *store.Store
	Logger      *logger.Logger
	Recorder    *metrics.Recorder
	Concurrency int
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}

	if d.Concurrency < 1 {
		d.Concurrency = 1
	}

	return d
}

// unitResult is how a unit ended when it did not fail.
type unitResult string

const (
	unitDone    unitResult = "done"
	unitCached  unitResult = "cached"
	unitSkipped unitResult = "skipped"
)

// forEach runs fn for every item with at most limit calls in flight. Only errors
// returned by fn stop the group, so fn reports per-unit failures through finish.
func forEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for _, item := range items {
		g.Go(func() error {
			return fn(gctx, item)
		})
	}

	return g.Wait()
}

// finish logs and records the end of one unit. It returns an error only on
// cancellation; every other failure is contained to the unit.
func (d Deps) finish(log *logger.Logger, stage columns.Stage, started time.Time, result unitResult, err error) error {
	elapsed := time.Since(started)

	if err == nil {
		d.Recorder.Unit(stage.String(), string(result), elapsed)

		if result == unitDone {
			log.Info("Unit completed", zap.Duration("elapsed", elapsed))
		}

		return nil
	}

	if isCanceled(err) {
		d.Recorder.Unit(stage.String(), "canceled", elapsed)

		return errors.Wrap(errors.ErrCodeCanceled, stage.String()+" canceled", err)
	}

	log.Error("Unit failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	d.Recorder.Unit(stage.String(), "failed", elapsed)

	return nil
}

// sidecar writes an error sidecar for key and logs when that fails too.
func (d Deps) sidecar(log *logger.Logger, key store.Key, operation string, cause error) {
	if err := d.Store.WriteError(key, operation, cause); err != nil {
		log.Warn("Failed to write error sidecar", zap.String("operation", operation), zap.Error(err))
	}
}

func isCanceled(err error) bool {
	return errors.HasCode(err, errors.ErrCodeCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// storeSource streams the pages of key from disk on every call.
func storeSource(ctx context.Context, st *store.Store, key store.Key) backtest.PageSource {
	return func() iter.Seq2[*frame.Frame, error] {
		return st.StreamPages(ctx, key, false)
	}
}

// memorySource reads the pages of key once and replays them from memory, for units
// that stream the same pages many times.
func memorySource(ctx context.Context, st *store.Store, key store.Key) (backtest.PageSource, error) {
	var pages []*frame.Frame

	for page, err := range st.StreamPages(ctx, key, false) {
		if err != nil {
			return nil, err
		}

		pages = append(pages, page)
	}

	return func() iter.Seq2[*frame.Frame, error] {
		return func(yield func(*frame.Frame, error) bool) {
			for _, p := range pages {
				if !yield(p, nil) {
					return
				}
			}
		}
	}, nil
}
