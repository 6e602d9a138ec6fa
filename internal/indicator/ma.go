package indicator

import "math"

// SMA is the simple moving average over period values.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if windowHasNaN(window) {
			continue
		}

		out[i] = mean(window)
	}

	return out
}

// RollingStd is the sample standard deviation (ddof=1) over period values.
func RollingStd(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period < 2 {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if windowHasNaN(window) {
			continue
		}

		out[i] = stddev(window, 1)
	}

	return out
}

func mean(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v
	}

	return sum / float64(len(window))
}

func stddev(window []float64, ddof int) float64 {
	m := mean(window)

	squaredDiffSum := 0.0
	for _, v := range window {
		d := v - m
		squaredDiffSum += d * d
	}

	return math.Sqrt(squaredDiffSum / float64(len(window)-ddof))
}
