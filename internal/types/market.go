package types

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV row of a symbol's series.
type Bar struct {
	Symbol     string    `csv:"symbol" json:"symbol"`
	Time       time.Time `csv:"timestamp" json:"timestamp"`
	Open       float64   `csv:"open" json:"open"`
	High       float64   `csv:"high" json:"high"`
	Low        float64   `csv:"low" json:"low"`
	Close      float64   `csv:"close" json:"close"`
	Volume     float64   `csv:"volume" json:"volume"`
	TradeCount int64     `csv:"trade_count" json:"trade_count"`
	VWAP       float64   `csv:"vwap" json:"vwap"`
}

// Validate checks the data quality rules every stored bar must satisfy.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return fmt.Errorf("bar for %s has no timestamp", b.Symbol)
	}

	for name, v := range map[string]float64{"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s at %s has non-finite %s", b.Symbol, b.Time.Format(time.RFC3339), name)
		}
	}

	if b.Close <= 0 {
		return fmt.Errorf("bar %s at %s has non-positive close %v", b.Symbol, b.Time.Format(time.RFC3339), b.Close)
	}

	return nil
}

// Quote is a top-of-book update received from a stream.
type Quote struct {
	Symbol   string    `json:"symbol"`
	Time     time.Time `json:"timestamp"`
	BidPrice float64   `json:"bid_price"`
	BidSize  float64   `json:"bid_size"`
	AskPrice float64   `json:"ask_price"`
	AskSize  float64   `json:"ask_size"`
}

// Trade is a single print received from a stream.
type Trade struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"timestamp"`
	Price  float64   `json:"price"`
	Size   float64   `json:"size"`
}
