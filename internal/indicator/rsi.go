package indicator

import "math"

// RSI is the relative strength index with Wilder smoothing of gains and losses.
// The first value appears at index period.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) < 2 || period <= 0 {
		return out
	}

	gains := nanSeries(len(closes))
	losses := nanSeries(len(closes))

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gains[i] = max(change, 0)
		losses[i] = max(-change, 0)
	}

	avgGain := wilder(gains, period)
	avgLoss := wilder(losses, period)

	for i := range closes {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}

		if l == 0 {
			if g == 0 {
				out[i] = 50
			} else {
				out[i] = 100
			}

			continue
		}

		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}

	return out
}
