package types

import "fmt"

// Well-known metric names used in artefacts and objectives.
const (
	MetricTotalReturn    = "total_return"
	MetricSharpeRatio    = "sharpe_ratio"
	MetricWinRate        = "win_rate"
	MetricMaxDrawdown    = "max_drawdown"
	MetricNumberOfTrades = "n_trades"
	MetricAvgTradeReturn = "avg_trade_return"
	MetricProfitFactor   = "profit_factor"
)

// CoreMetrics are the metrics aggregated across windows and used for viability.
func CoreMetrics() []string {
	return []string{MetricTotalReturn, MetricSharpeRatio, MetricWinRate, MetricMaxDrawdown}
}

// AllMetrics lists every metric in artefact order.
func AllMetrics() []string {
	return append(CoreMetrics(), MetricNumberOfTrades, MetricAvgTradeReturn, MetricProfitFactor)
}

// Metrics summarises a simulated trade list. All values are finite.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	// Informational only, never used for viability.
	NumberOfTrades int     `json:"n_trades"`
	AvgTradeReturn float64 `json:"avg_trade_return"`
	ProfitFactor   float64 `json:"profit_factor"`
}

// Value looks up a metric by name.
func (m Metrics) Value(name string) (float64, error) {
	switch name {
	case MetricTotalReturn:
		return m.TotalReturn, nil
	case MetricSharpeRatio:
		return m.SharpeRatio, nil
	case MetricWinRate:
		return m.WinRate, nil
	case MetricMaxDrawdown:
		return m.MaxDrawdown, nil
	case MetricNumberOfTrades:
		return float64(m.NumberOfTrades), nil
	case MetricAvgTradeReturn:
		return m.AvgTradeReturn, nil
	case MetricProfitFactor:
		return m.ProfitFactor, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// IsKnownMetric reports whether name can be passed to Value.
func IsKnownMetric(name string) bool {
	_, err := Metrics{}.Value(name)

	return err == nil
}
