package stateful

import (
	"math"
	"slices"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/moznion/go-optional"
)

// Engine combines the gated signals of one row with the running state.
type Engine interface {
	Name() string
	Params() condition.Params
	// Identity is ClassName(a=1,b=x) with parameters sorted by name.
	Identity() string
	RequiredColumns() []string
	// Step consumes one row. A BUY while in position becomes HOLD and a SELL while flat
	// becomes HOLD; risk rules may force a SELL and cooldowns may veto a BUY.
	Step(bar Bar, state State, signals types.Signals) (types.Signals, State)
}

// rules is the single engine implementation; each class enables a subset. Zero
// percentages disable the rule.
type rules struct {
	name        string
	params      condition.Params
	stopPct     float64
	targetPct   float64
	stopLossPct float64
	cooldown    int
}

func (e *rules) Name() string {
	return e.name
}

func (e *rules) Params() condition.Params {
	return slices.Clone(e.params)
}

func (e *rules) Identity() string {
	return condition.Identity(e.name, e.params)
}

func (e *rules) String() string {
	return e.Identity()
}

func (e *rules) RequiredColumns() []string {
	return []string{columns.Close, columns.High}
}

func (e *rules) Step(bar Bar, state State, signals types.Signals) (types.Signals, State) {
	out := signals

	if state.InPosition {
		out.Entry = types.EntryHold

		if e.forcedExit(bar, state) {
			out.Exit = types.ExitSell
		}

		if out.Exit == types.ExitSell {
			return out, e.exit(bar, state)
		}

		state.TrailingStop = e.raiseStop(bar, state)

		return out, state
	}

	out.Exit = types.ExitHold

	if e.coolingDown(bar.Index, state) {
		out.Entry = types.EntryHold
	}

	if out.Entry == types.EntryBuy {
		state = e.enter(bar, state)
	}

	state.CooldownRemaining = e.remaining(bar.Index, state)

	return out, state
}

func (e *rules) enter(bar Bar, state State) State {
	state.InPosition = true
	state.EntryPrice = optional.Some(bar.Close)
	state.CooldownRemaining = 0

	if e.stopPct > 0 {
		state.TrailingStop = optional.Some(bar.Close * (1 - e.stopPct))
	}

	return state
}

func (e *rules) exit(bar Bar, state State) State {
	state.InPosition = false
	state.EntryPrice = optional.None[float64]()
	state.TrailingStop = optional.None[float64]()
	state.LastExitIndex = optional.Some(bar.Index)
	state.CooldownRemaining = e.cooldown

	return state
}

// forcedExit checks the stop before it is raised for the current bar.
func (e *rules) forcedExit(bar Bar, state State) bool {
	if stop, err := state.TrailingStop.Take(); err == nil && bar.Close <= stop {
		return true
	}

	entry, err := state.EntryPrice.Take()
	if err != nil {
		return false
	}

	if e.targetPct > 0 && bar.Close >= entry*(1+e.targetPct) {
		return true
	}

	return e.stopLossPct > 0 && bar.Close <= entry*(1-e.stopLossPct)
}

func (e *rules) raiseStop(bar Bar, state State) optional.Option[float64] {
	stop, err := state.TrailingStop.Take()
	if err != nil || math.IsNaN(bar.High) {
		return state.TrailingStop
	}

	return optional.Some(math.Max(stop, bar.High*(1-e.stopPct)))
}

// coolingDown vetoes entries while index - lastExit <= cooldown.
func (e *rules) coolingDown(index int, state State) bool {
	last, err := state.LastExitIndex.Take()

	return err == nil && e.cooldown > 0 && index-last <= e.cooldown
}

func (e *rules) remaining(index int, state State) int {
	if state.InPosition {
		return 0
	}

	last, err := state.LastExitIndex.Take()
	if err != nil {
		return 0
	}

	return max(0, e.cooldown-(index-last))
}
