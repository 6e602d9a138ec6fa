package strategy

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
)

// ClassParams is the persisted form of one member: {ClassName: {param: value}}.
type ClassParams map[string]map[string]any

// BestParams is the persisted parameterisation of a strategy.
type BestParams struct {
	EntryConditions  []ClassParams `json:"entry_conditions"`
	ExitConditions   []ClassParams `json:"exit_conditions"`
	TrendConditions  []ClassParams `json:"trend_conditions"`
	FilterConditions []ClassParams `json:"filter_conditions,omitempty"`
	StatefulLogic    ClassParams   `json:"stateful_logic"`
}

func (c ClassParams) single() (string, map[string]any, error) {
	if len(c) != 1 {
		return "", nil, errors.Newf(errors.ErrCodeConfig, "expected one class per entry, got %v", slices.Sorted(maps.Keys(c)))
	}

	for name, params := range c {
		return name, params, nil
	}

	return "", nil, nil
}

// BestParams returns the persisted form of the strategy.
func (s *SignalStrategy) BestParams() BestParams {
	persist := func(conds []condition.Condition) []ClassParams {
		out := make([]ClassParams, len(conds))
		for i, c := range conds {
			out[i] = ClassParams{c.Name(): c.Params().Map()}
		}

		return out
	}

	var engine ClassParams
	if s.engine.IsSome() {
		e := s.engine.Unwrap()
		engine = ClassParams{e.Name(): e.Params().Map()}
	}

	return BestParams{
		EntryConditions:  persist(s.entries),
		ExitConditions:   persist(s.exits),
		TrendConditions:  persist(s.trends),
		FilterConditions: persist(s.filters),
		StatefulLogic:    engine,
	}
}

// Rehydrate rebuilds a strategy from persisted parameters. Unknown classes, missing
// parameters and role mismatches are config errors.
func Rehydrate(p BestParams) (*SignalStrategy, error) {
	filters, err := rehydrateRole(condition.RoleFilter, p.FilterConditions)
	if err != nil {
		return nil, err
	}

	trends, err := rehydrateRole(condition.RoleTrend, p.TrendConditions)
	if err != nil {
		return nil, err
	}

	entries, err := rehydrateRole(condition.RoleEntry, p.EntryConditions)
	if err != nil {
		return nil, err
	}

	exits, err := rehydrateRole(condition.RoleExit, p.ExitConditions)
	if err != nil {
		return nil, err
	}

	engine := optional.None[stateful.Engine]()

	if len(p.StatefulLogic) > 0 {
		name, params, err := p.StatefulLogic.single()
		if err != nil {
			return nil, fmt.Errorf("stateful_logic: %w", err)
		}

		e, err := stateful.Build(name, params)
		if err != nil {
			return nil, fmt.Errorf("stateful_logic: %w", err)
		}

		engine = optional.Some(e)
	}

	return New(filters, trends, entries, exits, engine)
}

func rehydrateRole(role condition.Role, entries []ClassParams) ([]condition.Condition, error) {
	out := make([]condition.Condition, 0, len(entries))

	for i, entry := range entries {
		name, params, err := entry.single()
		if err != nil {
			return nil, fmt.Errorf("%s_conditions[%d]: %w", role, i, err)
		}

		c, err := condition.Build(name, params)
		if err != nil {
			return nil, fmt.Errorf("%s_conditions[%d]: %w", role, i, err)
		}

		if c.Role() != role {
			return nil, errors.Newf(errors.ErrCodeConfig, "%s_conditions[%d]: %s is a %s condition", role, i, name, c.Role())
		}

		out = append(out, c)
	}

	return out, nil
}
