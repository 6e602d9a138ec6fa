package condition

import (
	"math"

	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/indicator"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// View exposes the recent history of a frame to EvaluateRow. Lag 0 is the current row.
// Values outside the available history are NaN.
type View interface {
	// Len is the number of rows available, the current one included.
	Len() int
	Value(column string, lag int) float64
}

// sliceView is the batch view: a cursor over whole frame columns.
type sliceView struct {
	columns map[string][]float64
	row     int
}

func (v *sliceView) Len() int {
	return v.row + 1
}

func (v *sliceView) Value(column string, lag int) float64 {
	col, ok := v.columns[column]
	i := v.row - lag

	if !ok || lag < 0 || i < 0 || i >= len(col) {
		return math.NaN()
	}

	return col[i]
}

// RingView is the online view: one ring buffer per column holding the last rows pushed.
type RingView struct {
	columns []string
	rings   map[string]*indicator.Ring[float64]
	pushed  int
	size    int
}

// NewRingView creates a view over the given columns keeping capacity rows.
func NewRingView(columns []string, capacity int) *RingView {
	capacity = max(capacity, 1)
	rings := make(map[string]*indicator.Ring[float64], len(columns))

	for _, col := range columns {
		rings[col] = indicator.NewRing[float64](capacity)
	}

	return &RingView{
		columns: columns,
		rings:   rings,
		pushed:  0,
		size:    capacity,
	}
}

// Push appends one row. The row must carry every tracked column.
func (v *RingView) Push(row frame.Row) error {
	for _, col := range v.columns {
		if _, ok := row.Floats[col]; !ok {
			return errors.Newf(errors.ErrCodeMissingColumns, "row at %s lacks column %s", row.Time, col)
		}
	}

	for _, col := range v.columns {
		v.rings[col].Push(row.Floats[col])
	}

	v.pushed++

	return nil
}

func (v *RingView) Len() int {
	return min(v.pushed, v.size)
}

func (v *RingView) Value(column string, lag int) float64 {
	r, ok := v.rings[column]
	if !ok || lag < 0 || lag >= r.Len() {
		return math.NaN()
	}

	return r.Last(lag)
}

// Reset forgets every pushed row.
func (v *RingView) Reset() {
	for _, r := range v.rings {
		r.Reset()
	}

	v.pushed = 0
}
