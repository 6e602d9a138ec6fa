package store

import (
	"fmt"
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/moznion/go-optional"
)

// Key addresses one artefact directory: <base>/<stage>/<strategy?>/<symbol>/<window?>.
type Key struct {
	Stage    columns.Stage
	Strategy optional.Option[string]
	Symbol   string
	Window   optional.Option[types.Window]
}

// DataKey addresses a data stage directory that is not keyed by strategy.
func DataKey(stage columns.Stage, symbol string, window types.Window) Key {
	return Key{
		Stage:    stage,
		Strategy: optional.None[string](),
		Symbol:   symbol,
		Window:   optional.Some(window),
	}
}

// StrategyKey addresses a strategy-keyed stage directory.
func StrategyKey(stage columns.Stage, strategy, symbol string, window types.Window) Key {
	return Key{
		Stage:    stage,
		Strategy: optional.Some(strategy),
		Symbol:   symbol,
		Window:   optional.Some(window),
	}
}

// SymbolKey addresses a per-(strategy?, symbol) directory without a window.
func SymbolKey(stage columns.Stage, strategy optional.Option[string], symbol string) Key {
	return Key{
		Stage:    stage,
		Strategy: strategy,
		Symbol:   symbol,
		Window:   optional.None[types.Window](),
	}
}

func (k Key) segments() ([]string, error) {
	parts := []string{string(k.Stage)}

	if strategy, err := k.Strategy.Take(); err == nil {
		parts = append(parts, strategy)
	}

	parts = append(parts, k.Symbol)

	if window, err := k.Window.Take(); err == nil {
		parts = append(parts, window.ID())
	}

	for _, p := range parts {
		if err := checkSegment(p); err != nil {
			return nil, err
		}
	}

	return parts, nil
}

// filePrefix is {strategy_}{symbol}.
func (k Key) filePrefix() string {
	if strategy, err := k.Strategy.Take(); err == nil {
		return strategy + "_" + k.Symbol
	}

	return k.Symbol
}

func (k Key) String() string {
	var b strings.Builder

	b.WriteString(string(k.Stage))

	if strategy, err := k.Strategy.Take(); err == nil {
		b.WriteString("/" + strategy)
	}

	b.WriteString("/" + k.Symbol)

	if window, err := k.Window.Take(); err == nil {
		b.WriteString("/" + window.ID())
	}

	return b.String()
}

func checkSegment(p string) error {
	if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
		return fmt.Errorf("invalid path segment %q", p)
	}

	return nil
}
