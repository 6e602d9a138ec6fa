package frame

import (
	"math"
	"slices"
	"time"
)

// Row is a single-row snapshot used by the online form of strategies.
type Row struct {
	Time    time.Time
	Floats  map[string]float64
	Strings map[string]string
}

// Float returns the column value or NaN if absent.
func (r Row) Float(name string) float64 {
	v, ok := r.Floats[name]
	if !ok {
		return math.NaN()
	}

	return v
}

// Has reports whether the row carries the column.
func (r Row) Has(name string) bool {
	if name == TimestampColumn {
		return true
	}

	_, isFloat := r.Floats[name]
	_, isString := r.Strings[name]

	return isFloat || isString
}

func (r Row) sortedFloatNames() []string {
	names := make([]string, 0, len(r.Floats))
	for name := range r.Floats {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r Row) sortedStringNames() []string {
	names := make([]string, 0, len(r.Strings))
	for name := range r.Strings {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
