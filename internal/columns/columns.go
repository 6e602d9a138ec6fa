// Package columns enumerates the well-known frame columns and the ordered pipeline
// stages with their column contracts.
package columns

// Bar columns.
const (
	Timestamp  = "timestamp"
	Open       = "open"
	High       = "high"
	Low        = "low"
	Close      = "close"
	Volume     = "volume"
	TradeCount = "trade_count"
	VWAP       = "vwap"
)

// Identity columns added by the store and strategies.
const (
	Symbol   = "symbol"
	Strategy = "strategy"
)

// Feature columns.
const (
	SMA5         = "sma_5"
	SMA10        = "sma_10"
	SMA20        = "sma_20"
	SMA50        = "sma_50"
	EMA12        = "ema_12"
	EMA20        = "ema_20"
	EMA26        = "ema_26"
	RSI14        = "rsi_14"
	MACD         = "macd"
	MACDSignal   = "macd_signal"
	MACDHist     = "macd_hist"
	ADX14        = "adx_14"
	ATR14        = "atr_14"
	Volatility20 = "volatility_20"
	VolumeMA20   = "volume_ma_20"
	BBUpper20    = "bb_upper_20"
	BBLower20    = "bb_lower_20"
	Range        = "range"
	UpperWick    = "upper_wick"
	LowerWick    = "lower_wick"
	Hour         = "hour"
	DayOfWeek    = "day_of_week"
	PctReturn    = "pct_return"
	LogReturn    = "log_return"
)

// Signal columns.
const (
	EntrySignal = "entry_signal"
	ExitSignal  = "exit_signal"
)

// BarColumns are the columns of an ingested bar page, excluding identity columns.
func BarColumns() []string {
	return []string{Timestamp, Open, High, Low, Close, Volume, TradeCount, VWAP}
}

// RequiredBarColumns are the bar columns that must be non-null in every row.
func RequiredBarColumns() []string {
	return []string{Timestamp, Open, High, Low, Close, Volume}
}

// FeatureColumns are the derived columns produced by the feature stage.
func FeatureColumns() []string {
	return []string{
		SMA5, SMA10, SMA20, SMA50,
		EMA12, EMA26, EMA20,
		RSI14,
		MACD, MACDSignal, MACDHist,
		ADX14, ATR14,
		Volatility20, VolumeMA20,
		BBUpper20, BBLower20,
		Range, UpperWick, LowerWick,
		Hour, DayOfWeek,
		PctReturn, LogReturn,
	}
}

// MovingAverageColumns are the feature columns a condition may reference as a moving average.
func MovingAverageColumns() []string {
	return []string{SMA5, SMA10, SMA20, SMA50, EMA12, EMA20, EMA26}
}

// SignalColumns are the columns a strategy attaches to a feature frame.
func SignalColumns() []string {
	return []string{EntrySignal, ExitSignal, Strategy, Symbol}
}

// StringColumns are the columns holding text values in every stage.
func StringColumns() []string {
	return []string{Symbol, Strategy, EntrySignal, ExitSignal}
}
