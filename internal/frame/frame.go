// Package frame provides a small column-oriented, time-indexed table used to pass
// bars, features and signals between pipeline stages.
package frame

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
)

// TimestampColumn is the name of the index column in CSV form.
const TimestampColumn = "timestamp"

// Frame is a rectangular table indexed by timestamp. Every column has the same length
// as the index. Float columns use NaN for missing values.
type Frame struct {
	index   []time.Time
	order   []string
	floats  map[string][]float64
	strings map[string][]string
}

// New creates a frame over the given index. The slice is copied.
func New(index []time.Time) *Frame {
	return &Frame{
		index:   slices.Clone(index),
		order:   nil,
		floats:  make(map[string][]float64),
		strings: make(map[string][]string),
	}
}

// FromBars builds a bar frame. The symbol column is included.
func FromBars(bars []types.Bar) *Frame {
	index := make([]time.Time, len(bars))
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volume := make([]float64, len(bars))
	tradeCount := make([]float64, len(bars))
	vwap := make([]float64, len(bars))
	symbols := make([]string, len(bars))

	for i, b := range bars {
		index[i] = b.Time.UTC()
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
		tradeCount[i] = float64(b.TradeCount)
		vwap[i] = b.VWAP
		symbols[i] = b.Symbol
	}

	f := New(nil)
	f.index = index
	f.setFloat("open", open)
	f.setFloat("high", high)
	f.setFloat("low", low)
	f.setFloat("close", closes)
	f.setFloat("volume", volume)
	f.setFloat("trade_count", tradeCount)
	f.setFloat("vwap", vwap)
	f.setString("symbol", symbols)

	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}

	return len(f.index)
}

// Index returns the timestamps. Callers must not modify the slice.
func (f *Frame) Index() []time.Time {
	return f.index
}

// Columns returns the column names in insertion order, excluding the index.
func (f *Frame) Columns() []string {
	return slices.Clone(f.order)
}

// Has reports whether the column exists. The timestamp index always exists.
func (f *Frame) Has(name string) bool {
	if name == TimestampColumn {
		return true
	}

	_, isFloat := f.floats[name]
	_, isString := f.strings[name]

	return isFloat || isString
}

// IsString reports whether the column holds strings.
func (f *Frame) IsString(name string) bool {
	_, ok := f.strings[name]

	return ok
}

// Missing returns the required columns not present in the frame, in input order.
func (f *Frame) Missing(required []string) []string {
	var missing []string

	for _, name := range required {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}

	return missing
}

// Float returns a float column. Callers must not modify the slice.
func (f *Frame) Float(name string) ([]float64, bool) {
	v, ok := f.floats[name]

	return v, ok
}

// MustFloat returns a float column or panics. Used where columns were validated beforehand.
func (f *Frame) MustFloat(name string) []float64 {
	v, ok := f.floats[name]
	if !ok {
		panic(fmt.Sprintf("frame has no float column %q", name))
	}

	return v
}

// String returns a string column. Callers must not modify the slice.
func (f *Frame) String(name string) ([]string, bool) {
	v, ok := f.strings[name]

	return v, ok
}

// SetFloat adds or replaces a float column.
func (f *Frame) SetFloat(name string, values []float64) error {
	if name == TimestampColumn {
		return fmt.Errorf("column %q is reserved", name)
	}

	if len(values) != len(f.index) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), len(f.index))
	}

	f.setFloat(name, values)

	return nil
}

// SetString adds or replaces a string column.
func (f *Frame) SetString(name string, values []string) error {
	if name == TimestampColumn {
		return fmt.Errorf("column %q is reserved", name)
	}

	if len(values) != len(f.index) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), len(f.index))
	}

	f.setString(name, values)

	return nil
}

// FillString adds a constant string column.
func (f *Frame) FillString(name, value string) error {
	values := make([]string, len(f.index))
	for i := range values {
		values[i] = value
	}

	return f.SetString(name, values)
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	delete(f.floats, name)
	delete(f.strings, name)
	f.order = slices.DeleteFunc(f.order, func(c string) bool { return c == name })
}

func (f *Frame) setFloat(name string, values []float64) {
	delete(f.strings, name)

	if !slices.Contains(f.order, name) {
		f.order = append(f.order, name)
	}

	f.floats[name] = values
}

func (f *Frame) setString(name string, values []string) {
	delete(f.floats, name)

	if !slices.Contains(f.order, name) {
		f.order = append(f.order, name)
	}

	f.strings[name] = values
}

// Slice returns a copy of rows [from, to).
func (f *Frame) Slice(from, to int) *Frame {
	from = max(0, min(from, f.Len()))
	to = max(from, min(to, f.Len()))

	out := New(f.index[from:to])
	for _, name := range f.order {
		if v, ok := f.floats[name]; ok {
			out.setFloat(name, slices.Clone(v[from:to]))
		} else {
			out.setString(name, slices.Clone(f.strings[name][from:to]))
		}
	}

	return out
}

// Tail returns a copy of the last n rows.
func (f *Frame) Tail(n int) *Frame {
	return f.Slice(f.Len()-n, f.Len())
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	return f.Slice(0, f.Len())
}

// Concat stacks frames vertically. All frames must share the same column set; the
// column order of the first non-empty frame is kept. Nil frames are ignored.
func Concat(frames ...*Frame) (*Frame, error) {
	var first *Frame

	total := 0

	for _, fr := range frames {
		if fr == nil {
			continue
		}

		if first == nil {
			first = fr
		}

		total += fr.Len()
	}

	if first == nil {
		return New(nil), nil
	}

	index := make([]time.Time, 0, total)
	for _, fr := range frames {
		if fr != nil {
			index = append(index, fr.index...)
		}
	}

	out := New(nil)
	out.index = index

	for _, name := range first.order {
		if first.IsString(name) {
			values := make([]string, 0, total)

			for _, fr := range frames {
				if fr == nil {
					continue
				}

				col, ok := fr.strings[name]
				if !ok {
					return nil, fmt.Errorf("cannot concat: string column %q missing", name)
				}

				values = append(values, col...)
			}

			out.setString(name, values)

			continue
		}

		values := make([]float64, 0, total)

		for _, fr := range frames {
			if fr == nil {
				continue
			}

			col, ok := fr.floats[name]
			if !ok {
				return nil, fmt.Errorf("cannot concat: float column %q missing", name)
			}

			values = append(values, col...)
		}

		out.setFloat(name, values)
	}

	for _, fr := range frames {
		if fr != nil && len(fr.order) != len(first.order) {
			return nil, fmt.Errorf("cannot concat: column sets differ (%d vs %d)", len(fr.order), len(first.order))
		}
	}

	return out, nil
}

// Row returns a snapshot of row i.
func (f *Frame) Row(i int) Row {
	row := Row{
		Time:    f.index[i],
		Floats:  make(map[string]float64, len(f.floats)),
		Strings: make(map[string]string, len(f.strings)),
	}

	for name, col := range f.floats {
		row.Floats[name] = col[i]
	}

	for name, col := range f.strings {
		row.Strings[name] = col[i]
	}

	return row
}

// Rows iterates over row snapshots in index order.
func (f *Frame) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i := range f.index {
			if !yield(i, f.Row(i)) {
				return
			}
		}
	}
}

// FromRows builds a frame from row snapshots. Column kinds are taken from the first row.
func FromRows(rows []Row) *Frame {
	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = r.Time
	}

	f := New(index)
	if len(rows) == 0 {
		return f
	}

	for _, name := range rows[0].sortedFloatNames() {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = r.Float(name)
		}

		f.setFloat(name, values)
	}

	for _, name := range rows[0].sortedStringNames() {
		values := make([]string, len(rows))
		for i, r := range rows {
			values[i] = r.Strings[name]
		}

		f.setString(name, values)
	}

	return f
}

// Equal reports whether two frames hold the same index, columns and values.
// NaN compares equal to NaN.
func (f *Frame) Equal(other *Frame) bool {
	if f.Len() != other.Len() || len(f.order) != len(other.order) {
		return false
	}

	for i := range f.index {
		if !f.index[i].Equal(other.index[i]) {
			return false
		}
	}

	for name, col := range f.floats {
		oc, ok := other.floats[name]
		if !ok {
			return false
		}

		for i := range col {
			if col[i] != oc[i] && !(math.IsNaN(col[i]) && math.IsNaN(oc[i])) {
				return false
			}
		}
	}

	for name, col := range f.strings {
		oc, ok := other.strings[name]
		if !ok || !slices.Equal(col, oc) {
			return false
		}
	}

	return true
}
