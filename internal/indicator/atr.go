package indicator

import "math"

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first row uses high-low.
func TrueRange(high, low, closes []float64) []float64 {
	out := make([]float64, len(closes))

	for i := range closes {
		if i == 0 {
			out[i] = high[i] - low[i]

			continue
		}

		out[i] = math.Max(
			math.Max(
				high[i]-low[i],
				math.Abs(high[i]-closes[i-1]),
			),
			math.Abs(low[i]-closes[i-1]),
		)
	}

	return out
}

// ATR is the Wilder-smoothed average true range.
func ATR(high, low, closes []float64, period int) []float64 {
	return wilder(TrueRange(high, low, closes), period)
}

// ADX is the average directional index with Wilder smoothing. The first value appears
// at index 2*period-1.
func ADX(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)

	if n < 2 || period <= 0 {
		return out
	}

	plusDM := nanSeries(n)
	minusDM := nanSeries(n)
	tr := nanSeries(n)

	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]

		plusDM[i] = 0
		if up > down && up > 0 {
			plusDM[i] = up
		}

		minusDM[i] = 0
		if down > up && down > 0 {
			minusDM[i] = down
		}

		tr[i] = math.Max(math.Max(high[i]-low[i], math.Abs(high[i]-closes[i-1])), math.Abs(low[i]-closes[i-1]))
	}

	smoothTR := wilder(tr, period)
	smoothPlus := wilder(plusDM, period)
	smoothMinus := wilder(minusDM, period)

	dx := nanSeries(n)

	for i := range n {
		if math.IsNaN(smoothTR[i]) || smoothTR[i] == 0 {
			continue
		}

		plusDI := 100 * smoothPlus[i] / smoothTR[i]
		minusDI := 100 * smoothMinus[i] / smoothTR[i]

		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0

			continue
		}

		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}

	return wilder(dx, period)
}
