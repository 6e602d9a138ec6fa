package config

import (
	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Build resolves the configured class names into a combinator.
func (c CombinatorConfig) Build() (strategy.Combinator, error) {
	filters, err := conditionTypes(condition.RoleFilter, c.Filters)
	if err != nil {
		return strategy.Combinator{}, err
	}

	trends, err := conditionTypes(condition.RoleTrend, c.Trends)
	if err != nil {
		return strategy.Combinator{}, err
	}

	entries, err := conditionTypes(condition.RoleEntry, c.Entries)
	if err != nil {
		return strategy.Combinator{}, err
	}

	exits, err := conditionTypes(condition.RoleExit, c.Exits)
	if err != nil {
		return strategy.Combinator{}, err
	}

	engines := stateful.Types()
	if len(c.Engines) > 0 {
		engines = make([]stateful.Type, 0, len(c.Engines))

		for _, name := range c.Engines {
			t, err := stateful.Lookup(name)
			if err != nil {
				return strategy.Combinator{}, err
			}

			engines = append(engines, t)
		}
	}

	return strategy.Combinator{
		Filters:          filters,
		Trends:           trends,
		Entries:          entries,
		Exits:            exits,
		Engines:          engines,
		MaxFilter:        c.MaxFilter,
		MaxTrend:         c.MaxTrend,
		MaxEntry:         c.MaxEntry,
		MaxExit:          c.MaxExit,
		AllowEmptyFilter: flag(c.AllowEmptyFilter, true),
		AllowEmptyTrend:  flag(c.AllowEmptyTrend, true),
		AllowEmptyEntry:  flag(c.AllowEmptyEntry, false),
		AllowEmptyExit:   flag(c.AllowEmptyExit, false),
		AllowNoEngine:    flag(c.AllowNoEngine, true),
	}, nil
}

func conditionTypes(role condition.Role, names []string) ([]condition.Type, error) {
	if len(names) == 0 {
		return condition.TypesFor(role), nil
	}

	out := make([]condition.Type, 0, len(names))

	for _, name := range names {
		t, err := condition.Lookup(name)
		if err != nil {
			return nil, err
		}

		if t.Role != role {
			return nil, errors.Newf(errors.ErrCodeConfig, "combinator: %s is a %s condition, not %s", name, t.Role, role)
		}

		out = append(out, t)
	}

	return out, nil
}

func flag(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}

	return *v
}
