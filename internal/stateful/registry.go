package stateful

import (
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Type describes one engine class.
type Type struct {
	Name     string
	Grid     func() condition.ParamGrid
	Suggest  func(t optimizer.Trial, prefix string) (Engine, error)
	Build    func(p condition.Params) (Engine, error)
	Defaults condition.Params
}

// Default builds the engine with default parameters.
func (t Type) Default() (Engine, error) {
	return t.Build(t.Defaults)
}

var (
	stopPct     = condition.FloatDim("stop_pct", 0.01, 0.2, 0.01, 0.05, 0.02, 0.05, 0.1)
	targetPct   = condition.FloatDim("target_pct", 0.01, 0.2, 0.01, 0.05, 0.02, 0.05, 0.1)
	stopLossPct = condition.FloatDim("stop_loss_pct", 0.01, 0.1, 0.01, 0.02, 0.01, 0.02, 0.05)
	cooldown    = condition.IntDim("reentry_cooldown", 0, 20, 1, 3, 1, 3, 5, 10)
)

var registry = []Type{
	newType("PositionEngine", nil),
	newType("TrailingStopEngine", condition.Space{stopPct}),
	newType("ProfitTargetEngine", condition.Space{stopLossPct, targetPct}),
	newType("CooldownEngine", condition.Space{cooldown}),
	newType("TrailingStopCooldownEngine", condition.Space{cooldown, stopPct}),
}

func newType(name string, space condition.Space) Type {
	build := func(p condition.Params) (Engine, error) {
		if err := space.CheckNames(name, p); err != nil {
			return nil, err
		}

		e := &rules{
			name:        name,
			params:      p,
			stopPct:     0,
			targetPct:   0,
			stopLossPct: 0,
			cooldown:    0,
		}

		for _, dim := range space.Names() {
			var err error

			switch dim {
			case "stop_pct":
				e.stopPct, err = fraction(name, p, dim)
			case "target_pct":
				e.targetPct, err = fraction(name, p, dim)
			case "stop_loss_pct":
				e.stopLossPct, err = fraction(name, p, dim)
			case "reentry_cooldown":
				e.cooldown, err = p.Int(dim)
				if err == nil && e.cooldown < 0 {
					err = condition.Invalid(name, "reentry_cooldown must not be negative, got %d", e.cooldown)
				}
			}

			if err != nil {
				return nil, err
			}
		}

		return e, nil
	}

	return Type{
		Name: name,
		Grid: space.Grid,
		Suggest: func(t optimizer.Trial, prefix string) (Engine, error) {
			p, err := space.Suggest(t, prefix+name+"_")
			if err != nil {
				return nil, err
			}

			return build(p)
		},
		Build:    build,
		Defaults: space.Defaults(),
	}
}

func fraction(name string, p condition.Params, param string) (float64, error) {
	v, err := p.Float(param)
	if err != nil {
		return 0, err
	}

	if v <= 0 || v >= 1 {
		return 0, condition.Invalid(name, "%s %v outside (0, 1)", param, v)
	}

	return v, nil
}

// Types returns every registered engine type.
func Types() []Type {
	return slices.Clone(registry)
}

// Lookup finds an engine type by class name.
func Lookup(name string) (Type, error) {
	for _, t := range registry {
		if t.Name == name {
			return t, nil
		}
	}

	return Type{}, errors.Newf(errors.ErrCodeUnknownClass, "unknown stateful engine class %q", name)
}

// Build rehydrates an engine from its class name and parameters.
func Build(name string, params map[string]any) (Engine, error) {
	t, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	return t.Build(condition.NewParams(params))
}
