package marketdata

import (
	"context"
	"iter"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/writer"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
)

const (
	DefaultFetchAttempts = 3
	DefaultFetchBackoff  = 500 * time.Millisecond
)

// Fetcher lists historical pages with per-page retries.
type Fetcher struct {
	client   HistoricalBarClient
	attempts int
	backoff  time.Duration
	logger   *logger.Logger
	recorder *metrics.Recorder
}

// NewFetcher wraps client. Non-positive attempts or backoff use the defaults.
func NewFetcher(client HistoricalBarClient, log *logger.Logger, recorder *metrics.Recorder, attempts int, backoff time.Duration) *Fetcher {
	if attempts <= 0 {
		attempts = DefaultFetchAttempts
	}

	if backoff <= 0 {
		backoff = DefaultFetchBackoff
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Fetcher{
		client:   client,
		attempts: attempts,
		backoff:  backoff,
		logger:   log,
		recorder: recorder,
	}
}

// Pages lazily yields the pages of symbol in [start, end). A page that still fails
// after every attempt ends the listing with an ErrCodeMarketDataFetchFailed error;
// pages already yielded stay valid.
func (f *Fetcher) Pages(ctx context.Context, symbol string, start, end time.Time) iter.Seq2[BarPage, error] {
	return func(yield func(BarPage, error) bool) {
		token := optional.None[string]()

		for page := 0; ; page++ {
			result, err := f.fetch(ctx, symbol, start, end, token, page)
			if err != nil {
				yield(BarPage{}, err)

				return
			}

			if !yield(result, nil) {
				return
			}

			next, err := result.NextPageToken.Take()
			if err != nil {
				return
			}

			if current, err := token.Take(); err == nil && current == next {
				yield(BarPage{}, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "%s: page token %q did not advance", symbol, next))

				return
			}

			token = optional.Some(next)
		}
	}
}

func (f *Fetcher) fetch(ctx context.Context, symbol string, start, end time.Time, token optional.Option[string], page int) (BarPage, error) {
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		result, err := f.client.FetchHistoricalBars(ctx, symbol, start, end, token)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return BarPage{}, errors.Wrap(errors.ErrCodeCanceled, "fetch canceled", ctx.Err())
		}

		if attempt == f.attempts {
			break
		}

		f.recorder.IORetry("fetch")
		f.logger.Warn("Retrying bar fetch",
			zap.String("symbol", symbol),
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return BarPage{}, errors.Wrap(errors.ErrCodeCanceled, "fetch canceled", ctx.Err())
		case <-time.After(time.Duration(attempt) * f.backoff):
		}
	}

	return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, lastErr, "%s: page %d failed after %d attempts", symbol, page, f.attempts)
}

// Download writes every bar of symbol in [start, end) through w and finalizes it.
// onProgress, when set, receives the running bar count after each page.
func (f *Fetcher) Download(ctx context.Context, w writer.BarWriter, symbol string, start, end time.Time, onProgress func(bars int)) (string, int, error) {
	if err := w.Initialize(); err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeIOFailed, "failed to initialize writer", err)
	}

	defer func() {
		if err := w.Close(); err != nil {
			f.logger.Warn("Failed to close writer", zap.String("path", w.OutputPath()), zap.Error(err))
		}
	}()

	count := 0

	for page, err := range f.Pages(ctx, symbol, start, end) {
		if err != nil {
			return "", count, err
		}

		for _, bar := range page.Bars {
			if err := w.Write(bar); err != nil {
				return "", count, errors.Wrap(errors.ErrCodeIOFailed, "failed to write bar", err)
			}

			count++
		}

		if onProgress != nil {
			onProgress(count)
		}
	}

	path, err := w.Finalize()
	if err != nil {
		return "", count, errors.Wrap(errors.ErrCodeIOFailed, "failed to finalize writer", err)
	}

	f.logger.Info("Download finished", zap.String("symbol", symbol), zap.Int("bars", count), zap.String("path", path))

	return path, count, nil
}
