// Package stateful implements the per-symbol state machines that turn gated condition
// signals into final entry and exit signals.
package stateful

import (
	"github.com/moznion/go-optional"
)

// State is the running state of one engine for one symbol. Engines receive it by value
// and return the successor; rows are fed in time order.
type State struct {
	InPosition        bool
	EntryPrice        optional.Option[float64]
	TrailingStop      optional.Option[float64]
	LastExitIndex     optional.Option[int]
	CooldownRemaining int
}

// Initial is the state at strategy start: flat, no history.
func Initial() State {
	return State{
		InPosition:        false,
		EntryPrice:        optional.None[float64](),
		TrailingStop:      optional.None[float64](),
		LastExitIndex:     optional.None[int](),
		CooldownRemaining: 0,
	}
}

// Bar is the part of a row an engine reads. Index is the row position since strategy start.
type Bar struct {
	Index int
	Close float64
	High  float64
}
