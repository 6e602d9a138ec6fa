// Package strategy composes conditions and an optional stateful engine into signal
// strategies, enumerates strategy templates and rehydrates persisted parameters.
package strategy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
)

// SignalStrategy is an immutable composition of filter, trend, entry and exit conditions
// plus an optional engine. It carries no per-symbol state and may be shared.
type SignalStrategy struct {
	name    string
	filters []condition.Condition
	trends  []condition.Condition
	entries []condition.Condition
	exits   []condition.Condition
	engine  optional.Option[stateful.Engine]
}

// New composes a strategy. Each condition must sit in the list of its role.
func New(filters, trends, entries, exits []condition.Condition, engine optional.Option[stateful.Engine]) (*SignalStrategy, error) {
	lists := map[condition.Role][]condition.Condition{
		condition.RoleFilter: filters,
		condition.RoleTrend:  trends,
		condition.RoleEntry:  entries,
		condition.RoleExit:   exits,
	}

	for role, conds := range lists {
		for _, c := range conds {
			if c.Role() != role {
				return nil, errors.Newf(errors.ErrCodeConfig, "%s is a %s condition, not %s", c.Name(), c.Role(), role)
			}
		}
	}

	s := &SignalStrategy{
		name:    "",
		filters: slices.Clone(filters),
		trends:  slices.Clone(trends),
		entries: slices.Clone(entries),
		exits:   slices.Clone(exits),
		engine:  engine,
	}
	s.name = templateName(s.ClassNames())

	return s, nil
}

// Name is the template name: the member class names in role order. It names the
// strategy directory and fills the strategy column.
func (s *SignalStrategy) Name() string {
	return s.name
}

// Identity includes every member identity; equal identities mean equal strategies.
func (s *SignalStrategy) Identity() string {
	engine := "none"
	if s.engine.IsSome() {
		engine = s.engine.Unwrap().Identity()
	}

	return fmt.Sprintf("SignalStrategy(filters=[%s],trends=[%s],entries=[%s],exits=[%s],engine=%s)",
		identities(s.filters), identities(s.trends), identities(s.entries), identities(s.exits), engine)
}

func (s *SignalStrategy) String() string {
	return s.Identity()
}

func identities(conds []condition.Condition) string {
	ids := make([]string, len(conds))
	for i, c := range conds {
		ids[i] = c.Identity()
	}

	return strings.Join(ids, ";")
}

// Conditions returns the conditions of one role.
func (s *SignalStrategy) Conditions(role condition.Role) []condition.Condition {
	switch role {
	case condition.RoleFilter:
		return slices.Clone(s.filters)
	case condition.RoleTrend:
		return slices.Clone(s.trends)
	case condition.RoleEntry:
		return slices.Clone(s.entries)
	case condition.RoleExit:
		return slices.Clone(s.exits)
	default:
		return nil
	}
}

// Engine returns the stateful engine, if any.
func (s *SignalStrategy) Engine() optional.Option[stateful.Engine] {
	return s.engine
}

func (s *SignalStrategy) all() []condition.Condition {
	return slices.Concat(s.filters, s.trends, s.entries, s.exits)
}

// RequiredColumns is the sorted union of the columns the members read.
func (s *SignalStrategy) RequiredColumns() []string {
	required := condition.RequiredColumns(s.all()...)

	if s.engine.IsSome() {
		for _, col := range s.engine.Unwrap().RequiredColumns() {
			if !slices.Contains(required, col) {
				required = append(required, col)
			}
		}

		slices.Sort(required)
	}

	return required
}

// MaxWindow is the largest condition window, the history the online and paged forms keep.
func (s *SignalStrategy) MaxWindow() int {
	return condition.MaxWindow(s.all()...)
}

// ClassNames returns the member classes per role.
func (s *SignalStrategy) ClassNames() ClassNames {
	names := func(conds []condition.Condition) []string {
		out := make([]string, len(conds))
		for i, c := range conds {
			out[i] = c.Name()
		}

		return out
	}

	engine := ""
	if s.engine.IsSome() {
		engine = s.engine.Unwrap().Name()
	}

	return ClassNames{
		Filters: names(s.filters),
		Trends:  names(s.trends),
		Entries: names(s.entries),
		Exits:   names(s.exits),
		Engine:  engine,
	}
}

// GenerateSignals runs the batch form over one frame and returns it with the signal,
// strategy and symbol columns attached.
func (s *SignalStrategy) GenerateSignals(symbol string, f *frame.Frame) (*frame.Frame, error) {
	signals, _, err := s.evaluate(f, 0, 0, stateful.Initial())
	if err != nil {
		return nil, err
	}

	return s.attach(symbol, f, signals)
}

// evaluate computes the signals of rows [start, f.Len()). Rows before start are history
// only. firstIndex is the position of row start since strategy start.
func (s *SignalStrategy) evaluate(f *frame.Frame, start, firstIndex int, state stateful.State) ([]types.Signals, stateful.State, error) {
	if missing := f.Missing(s.RequiredColumns()); len(missing) > 0 {
		return nil, state, errors.Newf(errors.ErrCodeMissingColumns, "strategy %s requires columns %v", s.name, missing)
	}

	n := f.Len()
	filter := fill(n, true)
	trend := fill(n, true)
	entry := fill(n, false)
	exit := fill(n, false)

	masks := []struct {
		conds []condition.Condition
		mask  []bool
		and   bool
	}{
		{s.filters, filter, true},
		{s.trends, trend, true},
		{s.entries, entry, false},
		{s.exits, exit, false},
	}

	for _, m := range masks {
		for _, c := range m.conds {
			values, err := condition.Evaluate(c, f)
			if err != nil {
				return nil, state, err
			}

			for i, v := range values {
				if m.and {
					m.mask[i] = m.mask[i] && v
				} else {
					m.mask[i] = m.mask[i] || v
				}
			}
		}
	}

	var closes, highs []float64
	if s.engine.IsSome() {
		closes = f.MustFloat(columns.Close)
		highs = f.MustFloat(columns.High)
	}

	out := make([]types.Signals, 0, n-start)

	for i := start; i < n; i++ {
		signals := combine(filter[i], trend[i], entry[i], exit[i])

		if s.engine.IsSome() {
			bar := stateful.Bar{Index: firstIndex + i - start, Close: closes[i], High: highs[i]}
			signals, state = s.engine.Unwrap().Step(bar, state, signals)
		}

		out = append(out, signals)
	}

	return out, state, nil
}

// combine gates the raw entry by the filter and trend masks.
func combine(filter, trend, entry, exit bool) types.Signals {
	signals := types.HoldSignals()

	if entry && filter && trend {
		signals.Entry = types.EntryBuy
	}

	if exit {
		signals.Exit = types.ExitSell
	}

	return signals
}

func (s *SignalStrategy) attach(symbol string, f *frame.Frame, signals []types.Signals) (*frame.Frame, error) {
	if len(signals) != f.Len() {
		return nil, errors.Newf(errors.ErrCodeLengthMismatch, "%d signals for %d rows", len(signals), f.Len())
	}

	entries := make([]string, len(signals))
	exits := make([]string, len(signals))

	for i, sig := range signals {
		entries[i] = string(sig.Entry)
		exits[i] = string(sig.Exit)
	}

	out := f.Clone()

	if err := out.SetString(columns.EntrySignal, entries); err != nil {
		return nil, err
	}

	if err := out.SetString(columns.ExitSignal, exits); err != nil {
		return nil, err
	}

	if err := out.FillString(columns.Strategy, s.name); err != nil {
		return nil, err
	}

	if err := out.FillString(columns.Symbol, symbol); err != nil {
		return nil, err
	}

	return out, nil
}

func fill(n int, v bool) []bool {
	out := make([]bool, n)
	if v {
		for i := range out {
			out[i] = true
		}
	}

	return out
}

// Signals reads the signal columns of a signal frame.
func Signals(f *frame.Frame) ([]types.Signals, error) {
	entries, ok := f.String(columns.EntrySignal)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingColumns, "frame has no %s column", columns.EntrySignal)
	}

	exits, ok := f.String(columns.ExitSignal)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingColumns, "frame has no %s column", columns.ExitSignal)
	}

	out := make([]types.Signals, len(entries))

	for i := range entries {
		out[i] = types.Signals{Entry: types.EntrySignal(entries[i]), Exit: types.ExitSignal(exits[i])}
		if !out[i].Entry.Valid() || !out[i].Exit.Valid() {
			return nil, errors.Newf(errors.ErrCodeInvalidData, "row %d has signals %q/%q", i, entries[i], exits[i])
		}
	}

	return out, nil
}
