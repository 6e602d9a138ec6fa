package condition

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Param is one named scalar parameter. Values are int, float64 or string.
type Param struct {
	Name  string
	Value any
}

// Params is a parameter list sorted by name.
type Params []Param

// NewParams builds a sorted parameter list. Integer kinds are normalised to int and
// json.Number values to int or float64.
func NewParams(values map[string]any) Params {
	names := slices.Sorted(maps.Keys(values))
	out := make(Params, 0, len(names))

	for _, name := range names {
		out = append(out, Param{Name: name, Value: normalise(values[name])})
	}

	return out
}

func normalise(v any) any {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}

		if f, err := x.Float64(); err == nil {
			return f
		}

		return x.String()
	default:
		return v
	}
}

// Get returns the raw value of a parameter.
func (p Params) Get(name string) (any, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}

	return nil, false
}

// Names returns the parameter names in order.
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}

	return names
}

// Map returns the parameters as a map, the persisted form.
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p))
	for _, param := range p {
		out[param.Name] = param.Value
	}

	return out
}

// Int reads an integer parameter. Integral floats are accepted since JSON has no ints.
func (p Params) Int(name string) (int, error) {
	v, ok := p.Get(name)
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMissingParameter, "missing parameter %s", name)
	}

	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %s=%v is not an integer", name, x)
		}

		return int(x), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %s has type %T, want int", name, v)
	}
}

// Float reads a numeric parameter.
func (p Params) Float(name string) (float64, error) {
	v, ok := p.Get(name)
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMissingParameter, "missing parameter %s", name)
	}

	switch x := v.(type) {
	case int:
		return float64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %s is not finite", name)
		}

		return x, nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %s has type %T, want number", name, v)
	}
}

// String reads a string parameter.
func (p Params) String(name string) (string, error) {
	v, ok := p.Get(name)
	if !ok {
		return "", errors.Newf(errors.ErrCodeMissingParameter, "missing parameter %s", name)
	}

	s, ok := v.(string)
	if !ok {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "parameter %s has type %T, want string", name, v)
	}

	return s, nil
}

// Equal compares names and formatted values.
func (p Params) Equal(other Params) bool {
	return p.format() == other.format()
}

func (p Params) format() string {
	parts := make([]string, len(p))
	for i, param := range p {
		parts[i] = param.Name + "=" + FormatValue(param.Value)
	}

	return strings.Join(parts, ",")
}

// FormatValue renders a parameter value the way identities show it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Identity renders ClassName(a=1,b=x).
func Identity(className string, p Params) string {
	return className + "(" + p.format() + ")"
}

// Axis enumerates the legal grid values of one parameter.
type Axis struct {
	Name   string
	Values []any
}

// ParamGrid is the enumerated parameter space of a type, one axis per parameter.
type ParamGrid []Axis

// Size is the number of combinations.
func (g ParamGrid) Size() int {
	n := 1
	for _, axis := range g {
		n *= len(axis.Values)
	}

	return n
}

// Combinations iterates every parameter combination, the last axis varying fastest.
func (g ParamGrid) Combinations() iter.Seq[Params] {
	return func(yield func(Params) bool) {
		if g.Size() == 0 {
			return
		}

		idx := make([]int, len(g))

		for {
			values := make(map[string]any, len(g))
			for i, axis := range g {
				values[axis.Name] = axis.Values[idx[i]]
			}

			if !yield(NewParams(values)) {
				return
			}

			i := len(g) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(g[i].Values) {
					break
				}

				idx[i] = 0
			}

			if i < 0 {
				return
			}
		}
	}
}
