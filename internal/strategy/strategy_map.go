package strategy

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/version"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"go.uber.org/zap"
)

const (
	// StrategyMapFile is the strategy map artefact under the base directory.
	StrategyMapFile = "strategy_map.json"
	// StrategyMapVersion is the version written into new strategy maps.
	StrategyMapVersion = "1.0.0"
	// strategyMapConstraint is the range of map versions this build can read.
	strategyMapConstraint = "^1"
)

// StrategyMap records the member classes of every enumerated template.
type StrategyMap struct {
	Version    string                `json:"version"`
	Strategies map[string]ClassNames `json:"strategies"`
}

// Factory writes the strategy map and rehydrates strategies. Map writes are serialised
// so concurrent combinators do not clobber each other.
type Factory struct {
	mu     sync.Mutex
	store  *store.Store
	logger *logger.Logger
}

// NewFactory creates a factory over the store's base directory.
func NewFactory(st *store.Store, log *logger.Logger) *Factory {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Factory{
		mu:     sync.Mutex{},
		store:  st,
		logger: log,
	}
}

// Rehydrate rebuilds a strategy from persisted parameters.
func (f *Factory) Rehydrate(p BestParams) (*SignalStrategy, error) {
	return Rehydrate(p)
}

// WriteStrategyMap merges templates into the strategy map and returns the result.
func (f *Factory) WriteStrategyMap(ctx context.Context, templates []Template) (StrategyMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.store.Path(StrategyMapFile)

	m, err := ReadStrategyMap(f.store)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeArtefactNotFound) {
			return StrategyMap{}, err
		}

		m = StrategyMap{Version: StrategyMapVersion, Strategies: map[string]ClassNames{}}
	}

	for _, t := range templates {
		m.Strategies[t.Name()] = t.ClassNames()
	}

	m.Version = StrategyMapVersion

	if err := f.store.WriteJSON(ctx, path, m); err != nil {
		return StrategyMap{}, err
	}

	f.logger.Info("Strategy map written",
		zap.String("path", path),
		zap.Int("strategies", len(m.Strategies)),
	)

	return m, nil
}

// ReadStrategyMap loads and version-checks the strategy map.
func ReadStrategyMap(st *store.Store) (StrategyMap, error) {
	var m StrategyMap
	if err := st.ReadJSON(st.Path(StrategyMapFile), &m); err != nil {
		return StrategyMap{}, err
	}

	if err := CheckMapVersion(m.Version); err != nil {
		return StrategyMap{}, err
	}

	if m.Strategies == nil {
		m.Strategies = map[string]ClassNames{}
	}

	return m, nil
}

// CheckMapVersion accepts map versions compatible with StrategyMapVersion.
func CheckMapVersion(v string) error {
	return version.Check("strategy map", v, strategyMapConstraint)
}

// Names returns the template names in the map, sorted.
func (m StrategyMap) Names() []string {
	return slices.Sorted(maps.Keys(m.Strategies))
}
