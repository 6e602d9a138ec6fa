package indicator

import "math"

// EMA is the exponential moving average with alpha = 2/(period+1).
// The first value is the SMA of the first period valid inputs; later values follow
// EMA = price*alpha + EMA_prev*(1-alpha), the pandas ewm(adjust=False) recurrence.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	start := firstValid(values)

	seedEnd := start + period - 1
	if seedEnd >= len(values) {
		return out
	}

	seed := values[start : seedEnd+1]
	if windowHasNaN(seed) {
		return out
	}

	alpha := 2.0 / float64(period+1)
	ema := mean(seed)
	out[seedEnd] = ema

	for i := seedEnd + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}

		ema = values[i]*alpha + ema*(1-alpha)
		out[i] = ema
	}

	return out
}

// wilder smooths values with Wilder's method: the first output is the mean of the first
// period valid values, then avg = (avg*(period-1) + v) / period.
func wilder(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	start := firstValid(values)

	seedEnd := start + period - 1
	if seedEnd >= len(values) {
		return out
	}

	seed := values[start : seedEnd+1]
	if windowHasNaN(seed) {
		return out
	}

	avg := mean(seed)
	out[seedEnd] = avg

	for i := seedEnd + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}

		avg = (avg*float64(period-1) + values[i]) / float64(period)
		out[i] = avg
	}

	return out
}
