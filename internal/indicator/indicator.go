// Package indicator computes technical indicator series over float columns.
//
// Every function returns a slice of the same length as its input. Positions inside the
// warm-up prefix, or whose window contains a NaN, are NaN. Windowed indicators (SMA,
// rolling standard deviation, Bollinger bands) evaluate each window independently, so
// the value at a row depends only on the rows inside its window. Recursive indicators
// (EMA, RSI, MACD, ATR, ADX) are seeded at the first full window of their input.
package indicator

import "math"

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

// firstValid returns the index of the first non-NaN value, or len(values).
func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}

	return len(values)
}

func windowHasNaN(window []float64) bool {
	for _, v := range window {
		if math.IsNaN(v) {
			return true
		}
	}

	return false
}
