package features

import (
	"math"

	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/frame"
	"github.com/ashourz/AlgoRoyale-sub002/internal/indicator"
)

// recursiveLookback is the warm-up given to recursive indicators whose value depends on
// the whole history; within it they converge rather than match exactly.
const recursiveLookback = 200

func defaultFeatures() []Feature {
	return []Feature{
		sma(columns.SMA5, 5),
		sma(columns.SMA10, 10),
		sma(columns.SMA20, 20),
		sma(columns.SMA50, 50),
		ema(columns.EMA12, 12),
		ema(columns.EMA26, 26),
		ema(columns.EMA20, 20),
		single(columns.RSI14, recursiveLookback, func(f *frame.Frame) []float64 {
			return indicator.RSI(f.MustFloat(columns.Close), 14)
		}),
		{
			Name:     "macd",
			Columns:  []string{columns.MACD, columns.MACDSignal, columns.MACDHist},
			Lookback: recursiveLookback,
			Compute: func(f *frame.Frame) (map[string][]float64, error) {
				res := indicator.MACD(f.MustFloat(columns.Close), 12, 26, 9)

				return map[string][]float64{
					columns.MACD:       res.MACD,
					columns.MACDSignal: res.Signal,
					columns.MACDHist:   res.Histogram,
				}, nil
			},
		},
		single(columns.ADX14, recursiveLookback, func(f *frame.Frame) []float64 {
			return indicator.ADX(f.MustFloat(columns.High), f.MustFloat(columns.Low), f.MustFloat(columns.Close), 14)
		}),
		single(columns.ATR14, recursiveLookback, func(f *frame.Frame) []float64 {
			return indicator.ATR(f.MustFloat(columns.High), f.MustFloat(columns.Low), f.MustFloat(columns.Close), 14)
		}),
		single(columns.Volatility20, 21, func(f *frame.Frame) []float64 {
			return indicator.RollingStd(pctReturn(f.MustFloat(columns.Close)), 20)
		}),
		single(columns.VolumeMA20, 20, func(f *frame.Frame) []float64 {
			return indicator.SMA(f.MustFloat(columns.Volume), 20)
		}),
		{
			Name:     "bollinger_20",
			Columns:  []string{columns.BBUpper20, columns.BBLower20},
			Lookback: 20,
			Compute: func(f *frame.Frame) (map[string][]float64, error) {
				upper, lower := indicator.BollingerBands(f.MustFloat(columns.Close), 20, 2)

				return map[string][]float64{
					columns.BBUpper20: upper,
					columns.BBLower20: lower,
				}, nil
			},
		},
		{
			Name:     "candle",
			Columns:  []string{columns.Range, columns.UpperWick, columns.LowerWick},
			Lookback: 0,
			Compute:  candle,
		},
		{
			Name:     "calendar",
			Columns:  []string{columns.Hour, columns.DayOfWeek},
			Lookback: 0,
			Compute:  calendar,
		},
		single(columns.PctReturn, 1, func(f *frame.Frame) []float64 {
			return pctReturn(f.MustFloat(columns.Close))
		}),
		single(columns.LogReturn, 1, func(f *frame.Frame) []float64 {
			return logReturn(f.MustFloat(columns.Close))
		}),
	}
}

func candle(f *frame.Frame) (map[string][]float64, error) {
	open := f.MustFloat(columns.Open)
	high := f.MustFloat(columns.High)
	low := f.MustFloat(columns.Low)
	closes := f.MustFloat(columns.Close)

	rng := make([]float64, f.Len())
	upper := make([]float64, f.Len())
	lower := make([]float64, f.Len())

	for i := range rng {
		rng[i] = high[i] - low[i]
		upper[i] = high[i] - math.Max(open[i], closes[i])
		lower[i] = math.Min(open[i], closes[i]) - low[i]
	}

	return map[string][]float64{
		columns.Range:     rng,
		columns.UpperWick: upper,
		columns.LowerWick: lower,
	}, nil
}

func calendar(f *frame.Frame) (map[string][]float64, error) {
	hours := make([]float64, f.Len())
	days := make([]float64, f.Len())

	for i, ts := range f.Index() {
		ts = ts.UTC()
		hours[i] = float64(ts.Hour())
		// Monday = 0
		days[i] = float64((int(ts.Weekday()) + 6) % 7)
	}

	return map[string][]float64{
		columns.Hour:      hours,
		columns.DayOfWeek: days,
	}, nil
}

func pctReturn(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	out[0] = math.NaN()

	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]/closes[i-1] - 1
	}

	return out
}

func logReturn(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	out[0] = math.NaN()

	for i := 1; i < len(closes); i++ {
		out[i] = math.Log(closes[i] / closes[i-1])
	}

	return out
}
