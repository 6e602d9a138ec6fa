package types

// EntrySignal is the per-row entry decision of a strategy.
type EntrySignal string

// ExitSignal is the per-row exit decision of a strategy.
type ExitSignal string

const (
	// EntryBuy opens a position when flat.
	EntryBuy EntrySignal = "BUY"
	// EntryHold takes no entry action.
	EntryHold EntrySignal = "HOLD"
)

const (
	// ExitSell closes an open position.
	ExitSell ExitSignal = "SELL"
	// ExitHold takes no exit action.
	ExitHold ExitSignal = "HOLD"
)

// Signals is the pair emitted for one row.
type Signals struct {
	Entry EntrySignal `json:"entry_signal"`
	Exit  ExitSignal  `json:"exit_signal"`
}

// HoldSignals is the neutral pair.
func HoldSignals() Signals {
	return Signals{Entry: EntryHold, Exit: ExitHold}
}

func (s EntrySignal) Valid() bool {
	return s == EntryBuy || s == EntryHold
}

func (s ExitSignal) Valid() bool {
	return s == ExitSell || s == ExitHold
}
