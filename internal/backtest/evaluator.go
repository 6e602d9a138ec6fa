package backtest

import (
	"math"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// DefaultProfitFactorCap bounds profit_factor when there are no losing trades.
const DefaultProfitFactorCap = 100.0

// Trade is one closed round trip.
type Trade struct {
	EntryIndex int
	ExitIndex  int
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Return     float64
}

// Evaluator simulates long-only trades from a signal frame.
type Evaluator struct {
	profitFactorCap float64
}

// NewEvaluator creates an evaluator with the default profit factor cap.
func NewEvaluator() *Evaluator {
	return &Evaluator{profitFactorCap: DefaultProfitFactorCap}
}

// Trades walks the rows in order. A BUY while flat opens at close; a SELL while in a
// trade closes at close. Entry is checked before exit on the same row; other signals are
// ignored. A trade still open at the end is dropped.
func (e *Evaluator) Trades(f *frame.Frame) ([]Trade, error) {
	signals, err := strategy.Signals(f)
	if err != nil {
		return nil, err
	}

	closes, ok := f.Float(columns.Close)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingColumns, "signal frame has no %s column", columns.Close)
	}

	index := f.Index()

	var (
		trades  []Trade
		inTrade bool
		open    Trade
	)

	for i, s := range signals {
		if s.Entry == types.EntryBuy && !inTrade {
			inTrade = true
			open = Trade{
				EntryIndex: i,
				ExitIndex:  0,
				EntryTime:  index[i],
				ExitTime:   time.Time{},
				EntryPrice: closes[i],
				ExitPrice:  0,
				Return:     0,
			}
		}

		if s.Exit == types.ExitSell && inTrade {
			inTrade = false
			open.ExitIndex = i
			open.ExitTime = index[i]
			open.ExitPrice = closes[i]
			open.Return = tradeReturn(open.EntryPrice, open.ExitPrice)
			trades = append(trades, open)
		}
	}

	return trades, nil
}

// tradeReturn is (exit - entry) / entry in decimal arithmetic.
func tradeReturn(entry, exit float64) float64 {
	if entry <= 0 || math.IsNaN(entry) || math.IsNaN(exit) {
		return 0
	}

	e := decimal.NewFromFloat(entry)

	return decimal.NewFromFloat(exit).Sub(e).Div(e).InexactFloat64()
}

// Evaluate simulates the trades of a signal frame and computes its metrics.
func (e *Evaluator) Evaluate(f *frame.Frame) (types.Metrics, error) {
	trades, err := e.Trades(f)
	if err != nil {
		return types.Metrics{}, err
	}

	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.Return
	}

	return e.Metrics(returns), nil
}

// Metrics computes the metrics of per-trade returns. Every value is finite.
//
// total_return is the plain sum. sharpe_ratio is mean/stdev (n-1) of the per-trade
// returns with a zero risk-free rate, and 0 with fewer than two trades or no dispersion.
// win_rate counts winners among non-flat trades. max_drawdown is the largest fall of the
// cumulative return curve from its running peak, the curve starting at 0.
func (e *Evaluator) Metrics(returns []float64) types.Metrics {
	m := types.Metrics{
		TotalReturn:    0,
		SharpeRatio:    0,
		WinRate:        0,
		MaxDrawdown:    0,
		NumberOfTrades: len(returns),
		AvgTradeReturn: 0,
		ProfitFactor:   0,
	}

	if len(returns) == 0 {
		return m
	}

	total := decimal.Zero
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	wins, decided := 0, 0
	peak, drawdown := 0.0, 0.0

	for _, r := range returns {
		d := decimal.NewFromFloat(r)
		total = total.Add(d)

		cumulative := total.InexactFloat64()
		peak = math.Max(peak, cumulative)
		drawdown = math.Max(drawdown, peak-cumulative)

		switch {
		case r > 0:
			wins++
			decided++
			grossProfit = grossProfit.Add(d)
		case r < 0:
			decided++
			grossLoss = grossLoss.Sub(d)
		}
	}

	m.TotalReturn = total.InexactFloat64()
	m.MaxDrawdown = drawdown
	m.AvgTradeReturn = m.TotalReturn / float64(len(returns))

	if decided > 0 {
		m.WinRate = float64(wins) / float64(decided)
	}

	if len(returns) >= 2 {
		mean, std := stat.MeanStdDev(returns, nil)
		if std > 0 && !math.IsNaN(std) {
			m.SharpeRatio = mean / std
		}
	}

	switch {
	case grossLoss.IsPositive():
		m.ProfitFactor = math.Min(grossProfit.Div(grossLoss).InexactFloat64(), e.profitFactorCap)
	case grossProfit.IsPositive():
		m.ProfitFactor = e.profitFactorCap
	}

	return m
}
