// Package marketdata fetches historical bars and realtime events from the supported
// providers.
package marketdata

import (
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/provider"
)

type (
	// BarPage is one page of historical bars.
	BarPage = provider.BarPage
	// HistoricalBarClient fetches historical bars page by page.
	HistoricalBarClient = provider.HistoricalBarClient
	// StreamClient delivers realtime events.
	StreamClient = provider.StreamClient
	// StreamHandlers receive stream events.
	StreamHandlers = provider.StreamHandlers
	// ProviderType names a historical data provider.
	ProviderType = provider.ProviderType
)

const (
	ProviderDuckDB     = provider.ProviderDuckDB
	ProviderPolygon    = provider.ProviderPolygon
	ProviderBinance    = provider.ProviderBinance
	ProviderClickHouse = provider.ProviderClickHouse
)
