package provider

import (
	"context"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/moznion/go-optional"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderDuckDB     ProviderType = "duckdb"
	ProviderPolygon    ProviderType = "polygon"
	ProviderBinance    ProviderType = "binance"
	ProviderClickHouse ProviderType = "clickhouse"
)

// DefaultPageSize is the number of bars requested per page when none is configured.
const DefaultPageSize = 5000

// BarPage is one page of historical bars. NextPageToken is None on the last page.
type BarPage struct {
	Bars          []types.Bar
	NextPageToken optional.Option[string]
}

// HistoricalBarClient fetches historical bars for [start, end) one page at a time.
// The token of the previous page continues the listing.
type HistoricalBarClient interface {
	FetchHistoricalBars(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (BarPage, error)
}

// StreamHandlers receive stream events. Nil handlers drop the event. A handler error
// ends the stream.
type StreamHandlers struct {
	OnBar   func(types.Bar) error
	OnQuote func(types.Quote) error
	OnTrade func(types.Trade) error
}

// StreamClient delivers realtime events until the context is cancelled or the
// connection fails.
type StreamClient interface {
	Stream(ctx context.Context, symbols []string, handlers StreamHandlers) error
}

// lastPage builds the final page of a listing.
func lastPage(bars []types.Bar) BarPage {
	return BarPage{Bars: bars, NextPageToken: optional.None[string]()}
}

// nextPage continues after bars when the page is full.
func nextPage(bars []types.Bar, limit int, token string) BarPage {
	if len(bars) < limit {
		return lastPage(bars)
	}

	return BarPage{Bars: bars, NextPageToken: optional.Some(token)}
}
