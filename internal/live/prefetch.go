package live

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"go.uber.org/zap"
)

// warmUpSpan widens the historical request so that closed sessions still leave enough
// bars before now.
const warmUpSpan = 3

// prefetchSize is the number of warm-up bars symbol needs.
func (r *Runner) prefetchSize(symbol string) int {
	if r.config.Prefetch > 0 {
		return r.config.Prefetch
	}

	return r.registry.MaxWindow(symbol) + r.engineer.MaxLookback()
}

// warmUp replays the last bars before now through the buffers of symbol without
// emitting signals.
func (r *Runner) warmUp(ctx context.Context, symbol string) error {
	n := r.prefetchSize(symbol)
	if r.fetcher == nil || n == 0 || r.config.Interval <= 0 {
		return nil
	}

	end := r.now().UTC()
	start := end.Add(-time.Duration(n*warmUpSpan) * r.config.Interval)

	var bars []types.Bar

	for page, err := range r.fetcher.Pages(ctx, symbol, start, end) {
		if err != nil {
			return err
		}

		bars = append(bars, page.Bars...)
	}

	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}

	replayed := 0

	for _, bar := range bars {
		if _, err := r.step(bar); err != nil {
			r.logger.Debug("Skipping warm-up bar", zap.String("symbol", symbol), zap.Error(err))

			continue
		}

		replayed++
	}

	r.logger.Info("Warm-up complete",
		zap.String("symbol", symbol),
		zap.Int("requested", n),
		zap.Int("replayed", replayed),
	)

	return nil
}
