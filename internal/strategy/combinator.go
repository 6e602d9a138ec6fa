package strategy

import (
	"iter"
	"slices"
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/optimizer"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/moznion/go-optional"
)

// ClassNames lists the member classes of a strategy or template per role.
type ClassNames struct {
	Filters []string `json:"filter_conditions"`
	Trends  []string `json:"trend_conditions"`
	Entries []string `json:"entry_conditions"`
	Exits   []string `json:"exit_conditions"`
	Engine  string   `json:"stateful_logic,omitempty"`
}

// templateName joins the class names in role order, engine last.
func templateName(n ClassNames) string {
	parts := slices.Concat(n.Filters, n.Trends, n.Entries, n.Exits)
	if n.Engine != "" {
		parts = append(parts, n.Engine)
	}

	if len(parts) == 0 {
		return "EmptyStrategy"
	}

	return strings.Join(parts, "_")
}

// Template is a strategy shape: condition classes per role and an optional engine
// class, without parameters.
type Template struct {
	filters []condition.Type
	trends  []condition.Type
	entries []condition.Type
	exits   []condition.Type
	engine  optional.Option[stateful.Type]
}

// NewTemplate builds a template from class lists.
func NewTemplate(filters, trends, entries, exits []condition.Type, engine optional.Option[stateful.Type]) Template {
	return Template{
		filters: slices.Clone(filters),
		trends:  slices.Clone(trends),
		entries: slices.Clone(entries),
		exits:   slices.Clone(exits),
		engine:  engine,
	}
}

// ClassNames returns the member classes per role.
func (t Template) ClassNames() ClassNames {
	names := func(ts []condition.Type) []string {
		out := make([]string, len(ts))
		for i, ct := range ts {
			out[i] = ct.Name
		}

		return out
	}

	engine := ""
	if t.engine.IsSome() {
		engine = t.engine.Unwrap().Name
	}

	return ClassNames{
		Filters: names(t.filters),
		Trends:  names(t.trends),
		Entries: names(t.entries),
		Exits:   names(t.exits),
		Engine:  engine,
	}
}

// Name equals the Name of every strategy built from the template.
func (t Template) Name() string {
	return templateName(t.ClassNames())
}

// New builds the strategy with default parameters.
func (t Template) New() (*SignalStrategy, error) {
	return t.build(
		func(ct condition.Type) (condition.Condition, error) { return ct.Default() },
		func(et stateful.Type) (stateful.Engine, error) { return et.Default() },
	)
}

// Suggest builds a strategy with parameters drawn from trial. Every parameter key starts
// with prefix.
func (t Template) Suggest(trial optimizer.Trial, prefix string) (*SignalStrategy, error) {
	return t.build(
		func(ct condition.Type) (condition.Condition, error) { return ct.Suggest(trial, prefix) },
		func(et stateful.Type) (stateful.Engine, error) { return et.Suggest(trial, prefix) },
	)
}

func (t Template) build(
	makeCondition func(condition.Type) (condition.Condition, error),
	makeEngine func(stateful.Type) (stateful.Engine, error),
) (*SignalStrategy, error) {
	instances := func(ts []condition.Type) ([]condition.Condition, error) {
		out := make([]condition.Condition, 0, len(ts))

		for _, ct := range ts {
			c, err := makeCondition(ct)
			if err != nil {
				return nil, err
			}

			out = append(out, c)
		}

		return out, nil
	}

	filters, err := instances(t.filters)
	if err != nil {
		return nil, err
	}

	trends, err := instances(t.trends)
	if err != nil {
		return nil, err
	}

	entries, err := instances(t.entries)
	if err != nil {
		return nil, err
	}

	exits, err := instances(t.exits)
	if err != nil {
		return nil, err
	}

	engine := optional.None[stateful.Engine]()

	if t.engine.IsSome() {
		e, err := makeEngine(t.engine.Unwrap())
		if err != nil {
			return nil, err
		}

		engine = optional.Some(e)
	}

	return New(filters, trends, entries, exits, engine)
}

// Combinator enumerates templates: the Cartesian product of a class subset per role and
// an engine. A role cap above one admits subsets of up to that many distinct classes.
// A role with no configured classes is always empty.
type Combinator struct {
	Filters []condition.Type
	Trends  []condition.Type
	Entries []condition.Type
	Exits   []condition.Type
	Engines []stateful.Type

	MaxFilter int
	MaxTrend  int
	MaxEntry  int
	MaxExit   int

	AllowEmptyFilter bool
	AllowEmptyTrend  bool
	AllowEmptyEntry  bool
	AllowEmptyExit   bool
	AllowNoEngine    bool
}

// DefaultCombinator uses every registered class with one class per role, empty
// filters and trends allowed, and an optional engine.
func DefaultCombinator() Combinator {
	return Combinator{
		Filters:          condition.TypesFor(condition.RoleFilter),
		Trends:           condition.TypesFor(condition.RoleTrend),
		Entries:          condition.TypesFor(condition.RoleEntry),
		Exits:            condition.TypesFor(condition.RoleExit),
		Engines:          stateful.Types(),
		MaxFilter:        1,
		MaxTrend:         1,
		MaxEntry:         1,
		MaxExit:          1,
		AllowEmptyFilter: true,
		AllowEmptyTrend:  true,
		AllowEmptyEntry:  false,
		AllowEmptyExit:   false,
		AllowNoEngine:    true,
	}
}

// Templates streams every template, the engine varying fastest.
func (c Combinator) Templates() iter.Seq[Template] {
	return func(yield func(Template) bool) {
		filters := subsets(c.Filters, c.MaxFilter, c.AllowEmptyFilter)
		trends := subsets(c.Trends, c.MaxTrend, c.AllowEmptyTrend)
		entries := subsets(c.Entries, c.MaxEntry, c.AllowEmptyEntry)
		exits := subsets(c.Exits, c.MaxExit, c.AllowEmptyExit)

		engines := make([]optional.Option[stateful.Type], 0, len(c.Engines)+1)
		if c.AllowNoEngine || len(c.Engines) == 0 {
			engines = append(engines, optional.None[stateful.Type]())
		}

		for _, e := range c.Engines {
			engines = append(engines, optional.Some(e))
		}

		for _, f := range filters {
			for _, tr := range trends {
				for _, en := range entries {
					for _, ex := range exits {
						for _, e := range engines {
							if !yield(NewTemplate(f, tr, en, ex, e)) {
								return
							}
						}
					}
				}
			}
		}
	}
}

// Count is the number of templates Templates yields.
func (c Combinator) Count() int {
	engines := len(c.Engines)
	if c.AllowNoEngine || len(c.Engines) == 0 {
		engines++
	}

	return len(subsets(c.Filters, c.MaxFilter, c.AllowEmptyFilter)) *
		len(subsets(c.Trends, c.MaxTrend, c.AllowEmptyTrend)) *
		len(subsets(c.Entries, c.MaxEntry, c.AllowEmptyEntry)) *
		len(subsets(c.Exits, c.MaxExit, c.AllowEmptyExit)) *
		engines
}

// subsets lists the non-empty subsets of ts with at most limit members, in list order,
// preceded by the empty subset when allowed.
func subsets(ts []condition.Type, limit int, allowEmpty bool) [][]condition.Type {
	var out [][]condition.Type

	if allowEmpty || len(ts) == 0 {
		out = append(out, nil)
	}

	limit = min(max(limit, 1), len(ts))

	var walk func(start int, current []condition.Type)
	walk = func(start int, current []condition.Type) {
		if len(current) > 0 {
			out = append(out, slices.Clone(current))
		}

		if len(current) == limit {
			return
		}

		for i := start; i < len(ts); i++ {
			walk(i+1, append(current, ts[i]))
		}
	}

	walk(0, nil)

	return out
}
