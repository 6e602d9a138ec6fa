package condition

import (
	"fmt"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Type describes one condition class: how to enumerate, suggest and rebuild it.
type Type struct {
	Name string
	Role Role
	// Grid enumerates the legal values per parameter.
	Grid func() ParamGrid
	// Suggest draws an instance from a trial. Parameter names are prefix + Name + "_" + param.
	Suggest func(t optimizer.Trial, prefix string) (Condition, error)
	// Build rehydrates an instance from persisted parameters.
	Build func(p Params) (Condition, error)
	// Defaults are the parameters of the default instance.
	Defaults Params
}

// Default builds the instance with default parameters.
func (t Type) Default() (Condition, error) {
	return t.Build(t.Defaults)
}

type dimKind int

const (
	dimInt dimKind = iota
	dimFloat
	dimChoice
)

// Dimension is the search range of one parameter plus its enumerated grid and default.
type Dimension struct {
	name    string
	kind    dimKind
	low     float64
	high    float64
	step    float64
	choices []string
	grid    []any
	def     any
}

// IntDim is an integer parameter searched over low..high by step.
func IntDim(name string, low, high, step int, def int, grid ...int) Dimension {
	values := make([]any, len(grid))
	for i, v := range grid {
		values[i] = v
	}

	return Dimension{
		name:    name,
		kind:    dimInt,
		low:     float64(low),
		high:    float64(high),
		step:    float64(step),
		choices: nil,
		grid:    values,
		def:     def,
	}
}

// FloatDim is a float parameter searched over [low, high], on a grid when step > 0.
func FloatDim(name string, low, high, step float64, def float64, grid ...float64) Dimension {
	values := make([]any, len(grid))
	for i, v := range grid {
		values[i] = v
	}

	return Dimension{
		name:    name,
		kind:    dimFloat,
		low:     low,
		high:    high,
		step:    step,
		choices: nil,
		grid:    values,
		def:     def,
	}
}

// ChoiceDim is a parameter taking one of the given strings; all of them form the grid.
func ChoiceDim(name string, def string, choices ...string) Dimension {
	values := make([]any, len(choices))
	for i, v := range choices {
		values[i] = v
	}

	return Dimension{
		name:    name,
		kind:    dimChoice,
		low:     0,
		high:    0,
		step:    0,
		choices: slices.Clone(choices),
		grid:    values,
		def:     def,
	}
}

func (d Dimension) suggest(t optimizer.Trial, key string) (any, error) {
	switch d.kind {
	case dimInt:
		return t.SuggestInt(key, int(d.low), int(d.high), int(d.step))
	case dimFloat:
		return t.SuggestFloat(key, d.low, d.high, d.step)
	default:
		return t.SuggestCategorical(key, d.choices)
	}
}

// Space is the parameter space of one class.
type Space []Dimension

// Names returns the parameter names in declaration order.
func (s Space) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.name
	}

	return names
}

// Grid enumerates the grid values of every dimension.
func (s Space) Grid() ParamGrid {
	grid := make(ParamGrid, len(s))
	for i, d := range s {
		grid[i] = Axis{Name: d.name, Values: slices.Clone(d.grid)}
	}

	return grid
}

// Defaults returns the default parameters.
func (s Space) Defaults() Params {
	values := make(map[string]any, len(s))
	for _, d := range s {
		values[d.name] = d.def
	}

	return NewParams(values)
}

// Suggest draws every dimension from the trial under keyPrefix + name.
func (s Space) Suggest(t optimizer.Trial, keyPrefix string) (Params, error) {
	values := make(map[string]any, len(s))

	for _, d := range s {
		v, err := d.suggest(t, keyPrefix+d.name)
		if err != nil {
			return nil, err
		}

		values[d.name] = v
	}

	return NewParams(values), nil
}

// CheckNames rejects parameters the space does not declare.
func (s Space) CheckNames(className string, p Params) error {
	known := s.Names()

	for _, name := range p.Names() {
		if !slices.Contains(known, name) {
			return errors.Newf(errors.ErrCodeInvalidParameter, "%s has no parameter %s", className, name)
		}
	}

	return nil
}

// typeDef is the declarative form every shipped condition is written in.
type typeDef struct {
	name  string
	role  Role
	space Space
	build func(p Params) (Condition, error)
}

func newType(def typeDef) Type {
	build := func(p Params) (Condition, error) {
		if err := def.space.CheckNames(def.name, p); err != nil {
			return nil, err
		}

		return def.build(p)
	}

	return Type{
		Name: def.name,
		Role: def.role,
		Grid: def.space.Grid,
		Suggest: func(t optimizer.Trial, prefix string) (Condition, error) {
			p, err := def.space.Suggest(t, prefix+def.name+"_")
			if err != nil {
				return nil, err
			}

			return build(p)
		},
		Build:    build,
		Defaults: def.space.Defaults(),
	}
}

// Invalid is the error for a parameter outside its legal range.
func Invalid(className, format string, args ...any) error {
	return errors.Newf(errors.ErrCodeInvalidParameter, "%s: %s", className, fmt.Sprintf(format, args...))
}
