package strategy

import (
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/condition"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
)

// Buffered is the online form of a strategy for one symbol. It keeps ring buffers of the
// last MaxWindow rows and emits the same signals as GenerateSignals over the same rows.
type Buffered struct {
	strategy *SignalStrategy
	symbol   string
	view     *condition.RingView
	state    stateful.State
	index    int
}

// NewBuffered creates the online form for symbol.
func (s *SignalStrategy) NewBuffered(symbol string) *Buffered {
	return &Buffered{
		strategy: s,
		symbol:   symbol,
		view:     condition.NewRingView(s.RequiredColumns(), s.MaxWindow()),
		state:    stateful.Initial(),
		index:    0,
	}
}

// Strategy returns the wrapped strategy.
func (b *Buffered) Strategy() *SignalStrategy {
	return b.strategy
}

// Symbol returns the symbol this buffer tracks.
func (b *Buffered) Symbol() string {
	return b.symbol
}

// State returns the current engine state.
func (b *Buffered) State() stateful.State {
	return b.state
}

// Push consumes the next row. A row missing a required column is rejected and does not
// advance the buffer.
func (b *Buffered) Push(row frame.Row) (types.EntrySignal, types.ExitSignal, error) {
	if err := b.view.Push(row); err != nil {
		return types.EntryHold, types.ExitHold, err
	}

	s := b.strategy
	signals := combine(
		allFire(s.filters, b.view),
		allFire(s.trends, b.view),
		anyFires(s.entries, b.view),
		anyFires(s.exits, b.view),
	)

	if s.engine.IsSome() {
		bar := stateful.Bar{Index: b.index, Close: row.Float(columns.Close), High: row.Float(columns.High)}
		signals, b.state = s.engine.Unwrap().Step(bar, b.state, signals)
	}

	b.index++

	return signals.Entry, signals.Exit, nil
}

// Reset returns the buffer to its initial state.
func (b *Buffered) Reset() {
	b.view.Reset()
	b.state = stateful.Initial()
	b.index = 0
}

func fires(c condition.Condition, v condition.View) bool {
	return condition.Ready(c, v) && c.EvaluateRow(v)
}

func allFire(conds []condition.Condition, v condition.View) bool {
	for _, c := range conds {
		if !fires(c, v) {
			return false
		}
	}

	return true
}

func anyFires(conds []condition.Condition, v condition.View) bool {
	for _, c := range conds {
		if fires(c, v) {
			return true
		}
	}

	return false
}
