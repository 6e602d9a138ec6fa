package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"go.uber.org/zap"
)

// IngestCoordinator downloads the bars of each symbol and window into data_ingest.
type IngestCoordinator struct {
	deps    Deps
	fetcher *marketdata.Fetcher
}

func NewIngestCoordinator(deps Deps, fetcher *marketdata.Fetcher) *IngestCoordinator {
	return &IngestCoordinator{deps: deps.withDefaults(), fetcher: fetcher}
}

// Run ingests window for every symbol.
func (c *IngestCoordinator) Run(ctx context.Context, symbols []string, window types.Window) error {
	return forEach(ctx, c.deps.Concurrency, symbols, func(ctx context.Context, symbol string) error {
		log := c.deps.Logger.Unit(columns.StageDataIngest.String(), "", symbol, window.ID())
		started := time.Now()
		result, err := c.ingest(ctx, symbol, window)

		return c.deps.finish(log, columns.StageDataIngest, started, result, err)
	})
}

// ingest writes one page per fetched page. A page that cannot be fetched ends the
// symbol's download with fetch.error beside the last written page and no DONE marker.
func (c *IngestCoordinator) ingest(ctx context.Context, symbol string, window types.Window) (unitResult, error) {
	st := c.deps.Store
	key := store.DataKey(columns.StageDataIngest, symbol, window)
	log := c.deps.Logger.Unit(columns.StageDataIngest.String(), "", symbol, window.ID())

	if st.IsDone(key) {
		log.Debug("Ingest already done")

		return unitCached, nil
	}

	if err := st.Clear(key); err != nil {
		return "", err
	}

	pageIndex := 0
	bars := 0

	for page, err := range c.fetcher.Pages(ctx, symbol, window.Start, window.Until()) {
		if err != nil {
			if isCanceled(err) || ctx.Err() != nil {
				return "", err
			}

			dir, derr := st.DirectoryPath(key)
			if last := st.LastPagePath(key); last.IsSome() {
				dir, derr = filepath.Dir(last.Unwrap()), nil
			}

			if derr == nil {
				if werr := store.WriteErrorAt(dir, "fetch", err); werr != nil {
					log.Warn("Failed to write error sidecar", zap.Error(werr))
				}
			}

			log.Warn("Fetch failed, skipping remaining pages",
				zap.Int("pages_written", pageIndex),
				zap.Error(err),
			)

			return "", err
		}

		if len(page.Bars) == 0 {
			continue
		}

		if err := st.WritePage(ctx, key, pageIndex, frame.FromBars(page.Bars)); err != nil {
			return "", err
		}

		pageIndex++
		bars += len(page.Bars)
	}

	if pageIndex == 0 {
		log.Warn("No bars in window")
	}

	if err := st.MarkDone(key); err != nil {
		return "", err
	}

	log.Debug("Ingest finished", zap.Int("pages", pageIndex), zap.Int("bars", bars))

	return unitDone, nil
}
