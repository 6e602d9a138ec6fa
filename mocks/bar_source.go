package mocks

import (
	"context"
	"strconv"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/provider"
	"github.com/moznion/go-optional"
)

// FetchFunc has the signature of HistoricalBarClient.FetchHistoricalBars.
type FetchFunc func(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (provider.BarPage, error)

// ServeBars answers historical requests from bars, keyed by symbol, in pages of at most
// pageSize bars. The page token is the offset of the next bar in [start, end).
func ServeBars(bars map[string][]types.Bar, pageSize int) FetchFunc {
	return func(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (provider.BarPage, error) {
		var inRange []types.Bar

		for _, b := range bars[symbol] {
			if !b.Time.Before(start) && b.Time.Before(end) {
				inRange = append(inRange, b)
			}
		}

		offset := 0
		if pageToken.IsSome() {
			n, err := strconv.Atoi(pageToken.Unwrap())
			if err != nil {
				return provider.BarPage{}, err
			}

			offset = n
		}

		next := min(offset+pageSize, len(inRange))
		page := provider.BarPage{
			Bars:          inRange[offset:next],
			NextPageToken: optional.None[string](),
		}

		if next < len(inRange) {
			page.NextPageToken = optional.Some(strconv.Itoa(next))
		}

		return page, nil
	}
}
