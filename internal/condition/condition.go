// Package condition implements the stateless predicates strategies are composed of.
//
// A condition reads the last WindowSize rows of a few feature columns through a View and
// reduces them to one boolean. Evaluate slides a View over a whole frame (batch form);
// RingView feeds the same reduction one row at a time (online form), so both forms agree
// row for row.
package condition

import (
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Role is the slot a condition fills in a strategy.
type Role string

const (
	RoleFilter Role = "filter"
	RoleTrend  Role = "trend"
	RoleEntry  Role = "entry"
	RoleExit   Role = "exit"
)

// Roles returns every role in strategy order.
func Roles() []Role {
	return []Role{RoleFilter, RoleTrend, RoleEntry, RoleExit}
}

// Condition is a pure predicate over the recent rows of a feature frame.
type Condition interface {
	// Name is the class name used in identities and persisted parameters.
	Name() string
	Role() Role
	RequiredColumns() []string
	// WindowSize is the number of rows EvaluateRow looks at.
	WindowSize() int
	// EvaluateRow reduces the last WindowSize rows of v. Callers only invoke it once
	// v.Len() >= WindowSize.
	EvaluateRow(v View) bool
	Params() Params
	// Identity is ClassName(a=1,b=x) with parameters sorted by name.
	Identity() string
}

type predicate struct {
	name     string
	role     Role
	required []string
	window   int
	params   Params
	eval     func(v View) bool
}

func (p *predicate) Name() string {
	return p.name
}

func (p *predicate) Role() Role {
	return p.role
}

func (p *predicate) RequiredColumns() []string {
	return slices.Clone(p.required)
}

func (p *predicate) WindowSize() int {
	return p.window
}

func (p *predicate) EvaluateRow(v View) bool {
	return p.eval(v)
}

func (p *predicate) Params() Params {
	return slices.Clone(p.params)
}

func (p *predicate) Identity() string {
	return Identity(p.name, p.params)
}

func (p *predicate) String() string {
	return p.Identity()
}

// Ready reports whether the view holds enough history for c.
func Ready(c Condition, v View) bool {
	return v.Len() >= c.WindowSize()
}

// Evaluate is the batch form: one value per frame row. Rows without WindowSize rows of
// history are false.
func Evaluate(c Condition, f *frame.Frame) ([]bool, error) {
	if missing := f.Missing(c.RequiredColumns()); len(missing) > 0 {
		return nil, errors.Newf(errors.ErrCodeMissingColumns, "%s requires columns %v", c.Identity(), missing)
	}

	view := &sliceView{columns: make(map[string][]float64), row: 0}

	for _, col := range c.RequiredColumns() {
		values, ok := f.Float(col)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidType, "%s requires numeric column %s", c.Identity(), col)
		}

		view.columns[col] = values
	}

	out := make([]bool, f.Len())
	for i := range out {
		view.row = i
		out[i] = Ready(c, view) && c.EvaluateRow(view)
	}

	return out, nil
}

// RequiredColumns returns the sorted union of the columns the conditions read.
func RequiredColumns(conds ...Condition) []string {
	var out []string

	for _, c := range conds {
		for _, col := range c.RequiredColumns() {
			if !slices.Contains(out, col) {
				out = append(out, col)
			}
		}
	}

	slices.Sort(out)

	return out
}

// MaxWindow is the largest WindowSize among the conditions, at least one.
func MaxWindow(conds ...Condition) int {
	w := 1
	for _, c := range conds {
		w = max(w, c.WindowSize())
	}

	return w
}
