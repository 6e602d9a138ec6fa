package indicator

// BollingerBands returns SMA(period) plus and minus k population standard deviations.
func BollingerBands(values []float64, period int, k float64) (upper, lower []float64) {
	upper = nanSeries(len(values))
	lower = nanSeries(len(values))

	if period <= 0 {
		return upper, lower
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if windowHasNaN(window) {
			continue
		}

		m := mean(window)
		sd := stddev(window, 0)
		upper[i] = m + k*sd
		lower[i] = m - k*sd
	}

	return upper, lower
}
