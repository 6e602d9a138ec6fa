package features

import (
	"fmt"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/indicator"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Feature computes one or more derived columns from a bar frame.
type Feature struct {
	// Name identifies the feature in configuration.
	Name string
	// Columns are the columns Compute returns.
	Columns []string
	// Lookback is the number of preceding rows needed for an exact value.
	Lookback int
	// Compute returns one series per column, each the length of the frame.
	Compute func(f *frame.Frame) (map[string][]float64, error)
}

// Set is an ordered collection of features.
type Set struct {
	features []Feature
}

// NewSet builds a set, rejecting duplicate names or columns.
func NewSet(features ...Feature) (*Set, error) {
	seenNames := map[string]bool{}
	seenColumns := map[string]bool{}

	for _, feat := range features {
		if seenNames[feat.Name] {
			return nil, errors.Newf(errors.ErrCodeConfig, "duplicate feature %q", feat.Name)
		}

		seenNames[feat.Name] = true

		for _, col := range feat.Columns {
			if seenColumns[col] {
				return nil, errors.Newf(errors.ErrCodeConfig, "column %q produced by more than one feature", col)
			}

			seenColumns[col] = true
		}
	}

	return &Set{features: slices.Clone(features)}, nil
}

// DefaultSet contains every feature column of the feature stage.
func DefaultSet() *Set {
	set, err := NewSet(defaultFeatures()...)
	if err != nil {
		panic(err)
	}

	return set
}

// Names lists the feature names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.features))
	for i, feat := range s.features {
		names[i] = feat.Name
	}

	return names
}

// Columns lists the produced columns in order.
func (s *Set) Columns() []string {
	var cols []string
	for _, feat := range s.features {
		cols = append(cols, feat.Columns...)
	}

	return cols
}

// MaxLookback is the largest lookback of any feature in the set.
func (s *Set) MaxLookback() int {
	lookback := 0
	for _, feat := range s.features {
		lookback = max(lookback, feat.Lookback)
	}

	return lookback
}

// Select returns a subset by feature name, keeping the set's order.
func (s *Set) Select(names ...string) (*Set, error) {
	var selected []Feature

	for _, name := range names {
		i := slices.IndexFunc(s.features, func(f Feature) bool { return f.Name == name })
		if i < 0 {
			return nil, errors.Newf(errors.ErrCodeConfig, "unknown feature %q", name)
		}

		selected = append(selected, s.features[i])
	}

	slices.SortStableFunc(selected, func(a, b Feature) int {
		return slices.Index(s.Names(), a.Name) - slices.Index(s.Names(), b.Name)
	})

	return NewSet(selected...)
}

// Apply returns a copy of f extended with every feature column.
func (s *Set) Apply(f *frame.Frame) (*frame.Frame, error) {
	if missing := f.Missing(columns.BarColumns()); len(missing) > 0 {
		return nil, errors.Newf(errors.ErrCodeMissingColumns, "feature input missing columns %v", missing)
	}

	out := f.Clone()

	for _, feat := range s.features {
		series, err := feat.Compute(f)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", feat.Name, err)
		}

		for _, col := range feat.Columns {
			values, ok := series[col]
			if !ok {
				return nil, errors.Newf(errors.ErrCodeMissingColumns, "feature %s did not produce %s", feat.Name, col)
			}

			if err := out.SetFloat(col, values); err != nil {
				return nil, errors.Wrap(errors.ErrCodeLengthMismatch, "feature "+feat.Name, err)
			}
		}
	}

	return out, nil
}

func single(col string, lookback int, fn func(f *frame.Frame) []float64) Feature {
	return Feature{
		Name:     col,
		Columns:  []string{col},
		Lookback: lookback,
		Compute: func(f *frame.Frame) (map[string][]float64, error) {
			return map[string][]float64{col: fn(f)}, nil
		},
	}
}

func sma(col string, period int) Feature {
	return single(col, period, func(f *frame.Frame) []float64 {
		return indicator.SMA(f.MustFloat(columns.Close), period)
	})
}

func ema(col string, period int) Feature {
	return single(col, period, func(f *frame.Frame) []float64 {
		return indicator.EMA(f.MustFloat(columns.Close), period)
	})
}
