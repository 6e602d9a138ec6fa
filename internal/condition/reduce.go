package condition

// mean averages n values of column starting lag rows back. Missing history gives NaN.
func mean(v View, column string, lag, n int) float64 {
	sum := 0.0
	for k := lag + n - 1; k >= lag; k-- {
		sum += v.Value(column, k)
	}

	return sum / float64(n)
}

// crossedAbove reports a crossing of a over b between the previous and current sample.
func crossedAbove(prevA, prevB, a, b float64) bool {
	return prevA <= prevB && a > b
}

// crossedBelow reports a crossing of a under b between the previous and current sample.
func crossedBelow(prevA, prevB, a, b float64) bool {
	return prevA >= prevB && a < b
}
