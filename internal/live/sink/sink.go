// Package sink defines where the online runtime delivers signals.
package sink

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"go.uber.org/zap"
)

// Event is the signal pair one strategy produced for one streamed bar.
type Event struct {
	Symbol   string        `json:"symbol"`
	Strategy string        `json:"strategy"`
	Time     time.Time     `json:"time"`
	Close    float64       `json:"close"`
	Weight   float64       `json:"weight"`
	Signals  types.Signals `json:"signals"`
}

// Actionable reports whether the event asks for an entry or an exit.
func (e Event) Actionable() bool {
	return e.Signals.Entry == types.EntryBuy || e.Signals.Exit == types.ExitSell
}

// Sink receives events. Emit is called from the stream goroutine and should not block
// for long.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Func adapts a plain function to Sink.
type Func func(ctx context.Context, event Event) error

func (f Func) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LoggingSink writes every event to the log.
type LoggingSink struct {
	logger *logger.Logger
}

func NewLoggingSink(log *logger.Logger) *LoggingSink {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &LoggingSink{logger: log}
}

func (s *LoggingSink) Emit(_ context.Context, event Event) error {
	s.logger.Info("Signal",
		zap.String("symbol", event.Symbol),
		zap.String("strategy", event.Strategy),
		zap.Time("time", event.Time),
		zap.Float64("close", event.Close),
		zap.Float64("weight", event.Weight),
		zap.String("entry", string(event.Signals.Entry)),
		zap.String("exit", string(event.Signals.Exit)),
	)

	return nil
}
