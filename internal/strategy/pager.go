package strategy

import (
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/stateful"
)

// Pager runs a strategy over consecutive pages of one symbol. It carries the last
// MaxWindow input rows and the engine state across pages, so the concatenated outputs
// equal a single-page run over the same rows.
type Pager struct {
	strategy *SignalStrategy
	symbol   string
	history  *frame.Frame
	state    stateful.State
	rows     int
}

// NewPager starts a paged run for symbol.
func (s *SignalStrategy) NewPager(symbol string) *Pager {
	return &Pager{
		strategy: s,
		symbol:   symbol,
		history:  nil,
		state:    stateful.Initial(),
		rows:     0,
	}
}

// Process returns the signal frame of page. A failing page leaves the pager unchanged.
func (p *Pager) Process(page *frame.Frame) (*frame.Frame, error) {
	extended, err := frame.Concat(p.history, page)
	if err != nil {
		return nil, err
	}

	start := p.history.Len()

	signals, state, err := p.strategy.evaluate(extended, start, p.rows, p.state)
	if err != nil {
		return nil, err
	}

	out, err := p.strategy.attach(p.symbol, page, signals)
	if err != nil {
		return nil, err
	}

	p.history = extended.Tail(p.strategy.MaxWindow())
	p.state = state
	p.rows += page.Len()

	return out, nil
}

// State returns the engine state after the last processed page.
func (p *Pager) State() stateful.State {
	return p.state
}
