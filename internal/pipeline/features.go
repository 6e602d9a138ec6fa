package pipeline

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"go.uber.org/zap"
)

// FeatureCoordinator engineers the ingested pages of each symbol and window.
type FeatureCoordinator struct {
	deps     Deps
	engineer *features.Engineer
}

func NewFeatureCoordinator(deps Deps, engineer *features.Engineer) *FeatureCoordinator {
	return &FeatureCoordinator{deps: deps.withDefaults(), engineer: engineer}
}

// Run engineers window for every symbol whose ingest is done.
func (c *FeatureCoordinator) Run(ctx context.Context, symbols []string, window types.Window) error {
	return forEach(ctx, c.deps.Concurrency, symbols, func(ctx context.Context, symbol string) error {
		log := c.deps.Logger.Unit(columns.StageFeatures.String(), "", symbol, window.ID())
		started := time.Now()
		result, err := c.engineerWindow(ctx, symbol, window)

		return c.deps.finish(log, columns.StageFeatures, started, result, err)
	})
}

func (c *FeatureCoordinator) engineerWindow(ctx context.Context, symbol string, window types.Window) (unitResult, error) {
	st := c.deps.Store
	key := store.DataKey(columns.StageFeatures, symbol, window)
	upstream := store.DataKey(columns.StageDataIngest, symbol, window)
	log := c.deps.Logger.Unit(columns.StageFeatures.String(), "", symbol, window.ID())

	if st.IsDone(key) {
		log.Debug("Features already done")

		return unitCached, nil
	}

	if !st.IsDone(upstream) {
		log.Info("Skipping window without completed ingest")

		return unitSkipped, nil
	}

	if err := st.Clear(key); err != nil {
		return "", err
	}

	pageIndex := 0

	for page, err := range c.engineer.Stream(ctx, st.StreamPages(ctx, upstream, false)) {
		if err != nil {
			return "", err
		}

		if page.Len() == 0 {
			continue
		}

		if err := st.WritePage(ctx, key, pageIndex, page); err != nil {
			return "", err
		}

		pageIndex++
	}

	if err := st.MarkDone(key); err != nil {
		return "", err
	}

	log.Debug("Features finished", zap.Int("pages", pageIndex))

	return unitDone, nil
}
