// Package live runs the selected strategies against a realtime bar stream.
//
// Every symbol of the registry gets one buffered strategy per viable strategy. The
// buffers are warmed up from historical bars, then each streamed bar is engineered
// with the same feature set as the offline pipeline and pushed through every buffer.
// Entry and exit signals are handed to a sink; nothing is routed to a broker.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/live/sink"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/internal/registry"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/writer"
	"go.uber.org/zap"
)

type (
	// SignalEvent is one strategy's signal pair for one streamed bar.
	SignalEvent = sink.Event
	// SignalSink receives the actionable events of the runner.
	SignalSink = sink.Sink
)

// Config tunes the runner.
type Config struct {
	// Interval is the bar length of the stream.
	Interval time.Duration
	// Prefetch is the number of warm-up bars per symbol. Zero uses the largest strategy
	// window of the symbol plus the feature lookback.
	Prefetch       int
	ReconnectDelay time.Duration
	// MaxReconnects bounds consecutive reconnects; zero reconnects forever.
	MaxReconnects int
}

// Runner owns the per-symbol buffers and the stream connection.
type Runner struct {
	config   Config
	registry *registry.Registry
	engineer *features.Engineer
	fetcher  *marketdata.Fetcher
	stream   marketdata.StreamClient
	sink     SignalSink
	writer   writer.BarWriter
	logger   *logger.Logger
	recorder *metrics.Recorder
	now      func() time.Time

	mu      sync.Mutex
	symbols map[string]*symbolState
}

type symbolState struct {
	history *frame.Frame
	buffers []buffered
	last    time.Time
}

type buffered struct {
	*strategy.Buffered
	weight float64
}

// Option customises a Runner.
type Option func(*Runner)

// WithBarWriter records every streamed bar, for example with a
// writer.StreamingDuckDBWriter.
func WithBarWriter(w writer.BarWriter) Option {
	return func(r *Runner) {
		r.writer = w
	}
}

// WithClock replaces time.Now for the warm-up window.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner. A nil fetcher disables warm-up and a nil sink logs events.
func NewRunner(
	cfg Config,
	reg *registry.Registry,
	engineer *features.Engineer,
	fetcher *marketdata.Fetcher,
	stream marketdata.StreamClient,
	out SignalSink,
	log *logger.Logger,
	recorder *metrics.Recorder,
	opts ...Option,
) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if out == nil {
		out = sink.NewLoggingSink(log)
	}

	r := &Runner{
		config:   cfg,
		registry: reg,
		engineer: engineer,
		fetcher:  fetcher,
		stream:   stream,
		sink:     out,
		writer:   nil,
		logger:   log,
		recorder: recorder,
		now:      time.Now,
		mu:       sync.Mutex{},
		symbols:  map[string]*symbolState{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run warms up every symbol and streams until ctx is cancelled or the reconnect budget
// is spent. Cancellation is a clean shutdown and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	symbols := r.registry.Symbols()
	if len(symbols) == 0 {
		return errors.New(errors.ErrCodeMissingParameter, "registry has no strategies to run")
	}

	if r.writer != nil {
		if err := r.writer.Initialize(); err != nil {
			return errors.Wrap(errors.ErrCodeIOFailed, "failed to initialize bar writer", err)
		}

		defer r.closeWriter()
	}

	r.prepare(symbols)

	for _, symbol := range symbols {
		if err := r.warmUp(ctx, symbol); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			r.logger.Warn("Warm-up failed, continuing without history",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("Live runner started",
		zap.Strings("symbols", symbols),
		zap.Duration("interval", r.config.Interval),
	)

	return r.streamLoop(ctx, symbols)
}

func (r *Runner) prepare(symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.symbols = make(map[string]*symbolState, len(symbols))

	for _, symbol := range symbols {
		entries := r.registry.Entries(symbol)
		state := &symbolState{history: nil, buffers: make([]buffered, len(entries)), last: time.Time{}}

		for i, e := range entries {
			state.buffers[i] = buffered{Buffered: e.Strategy.NewBuffered(symbol), weight: e.Weight}
		}

		r.symbols[symbol] = state
	}
}

func (r *Runner) streamLoop(ctx context.Context, symbols []string) error {
	handlers := marketdata.StreamHandlers{
		OnBar: func(bar types.Bar) error {
			return r.OnBar(ctx, bar)
		},
		OnQuote: nil,
		OnTrade: nil,
	}

	reconnects := 0

	for {
		err := r.stream.Stream(ctx, symbols, handlers)
		if ctx.Err() != nil {
			r.logger.Info("Live runner stopped")

			return nil
		}

		reconnects++
		if r.config.MaxReconnects > 0 && reconnects > r.config.MaxReconnects {
			return errors.Wrap(errors.ErrCodeStreamFailed, "stream reconnect budget exhausted", err)
		}

		r.logger.Warn("Stream disconnected, reconnecting",
			zap.Int("attempt", reconnects),
			zap.Duration("delay", r.config.ReconnectDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.config.ReconnectDelay):
		}
	}
}

// OnBar pushes one streamed bar through every buffer of its symbol. Bars of unknown
// symbols and bars not newer than the last one seen are dropped. Per-strategy failures
// are logged; only a cancelled context ends the stream.
func (r *Runner) OnBar(ctx context.Context, bar types.Bar) error {
	r.recorder.BarReceived(bar.Symbol)

	events, err := r.step(bar)
	if err != nil {
		r.logger.Warn("Dropping bar",
			zap.String("symbol", bar.Symbol),
			zap.Time("time", bar.Time),
			zap.Error(err),
		)

		return nil
	}

	if r.writer != nil {
		if err := r.writer.Write(bar); err != nil {
			r.logger.Warn("Failed to record bar", zap.String("symbol", bar.Symbol), zap.Error(err))
		}
	}

	for _, event := range events {
		if !event.Actionable() {
			continue
		}

		if err := r.sink.Emit(ctx, event); err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(errors.ErrCodeCanceled, "live runner canceled", ctx.Err())
			}

			r.logger.Warn("Sink rejected signal",
				zap.String("symbol", event.Symbol),
				zap.String("strategy", event.Strategy),
				zap.Error(err),
			)

			continue
		}

		if event.Signals.Entry == types.EntryBuy {
			r.recorder.SignalEmitted(event.Symbol, string(types.EntryBuy))
		}

		if event.Signals.Exit == types.ExitSell {
			r.recorder.SignalEmitted(event.Symbol, string(types.ExitSell))
		}
	}

	return nil
}

// step engineers bar against the symbol history and pushes it through every buffer.
func (r *Runner) step(bar types.Bar) ([]SignalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.symbols[bar.Symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidData, "symbol %s is not in the registry", bar.Symbol)
	}

	if !state.last.IsZero() && !bar.Time.After(state.last) {
		return nil, errors.Newf(errors.ErrCodeInvalidTimestamp, "bar at %s is not after %s", bar.Time, state.last)
	}

	if err := bar.Validate(); err != nil {
		return nil, err
	}

	page := frame.FromBars([]types.Bar{bar})

	engineered, err := r.engineer.Page(state.history, page)
	if err != nil {
		return nil, err
	}

	history, err := frame.Concat(state.history, page)
	if err != nil {
		return nil, err
	}

	state.history = history.Tail(max(r.engineer.MaxLookback(), 1))
	state.last = bar.Time

	row := engineered.Row(engineered.Len() - 1)
	events := make([]SignalEvent, 0, len(state.buffers))

	for _, b := range state.buffers {
		entry, exit, err := b.Push(row)
		if err != nil {
			r.logger.Warn("Strategy rejected row",
				zap.String("symbol", bar.Symbol),
				zap.String("strategy", b.Strategy().Name()),
				zap.Error(err),
			)

			continue
		}

		events = append(events, SignalEvent{
			Symbol:   bar.Symbol,
			Strategy: b.Strategy().Name(),
			Time:     bar.Time,
			Close:    bar.Close,
			Weight:   b.weight,
			Signals:  types.Signals{Entry: entry, Exit: exit},
		})
	}

	return events, nil
}

func (r *Runner) closeWriter() {
	if _, err := r.writer.Finalize(); err != nil {
		r.logger.Warn("Failed to finalize bar writer", zap.Error(err))
	}

	if err := r.writer.Close(); err != nil {
		r.logger.Warn("Failed to close bar writer", zap.Error(err))
	}
}
