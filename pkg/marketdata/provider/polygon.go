package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
)

// PolygonAggsIterator is the iterator returned by the Polygon aggregates endpoint.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the Polygon REST client used here.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonAPI struct {
	client *polygon.Client
}

func (a polygonAPI) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

// PolygonClient pages Polygon.io aggregates. The page token is the millisecond
// timestamp after which the next page starts.
type PolygonClient struct {
	api      PolygonAPIClient
	timespan Timespan
	pageSize int
}

// NewPolygonClient creates a client authenticated with apiKey.
func NewPolygonClient(apiKey string, timespan Timespan, pageSize int) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "polygon: apiKey is required")
	}

	return NewPolygonClientWithAPI(polygonAPI{client: polygon.New(apiKey)}, timespan, pageSize), nil
}

// NewPolygonClientWithAPI creates a client over an existing API implementation.
func NewPolygonClientWithAPI(api PolygonAPIClient, timespan Timespan, pageSize int) *PolygonClient {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &PolygonClient{
		api:      api,
		timespan: timespan,
		pageSize: pageSize,
	}
}

// FetchHistoricalBars implements HistoricalBarClient.
func (c *PolygonClient) FetchHistoricalBars(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (BarPage, error) {
	from := start
	if token, err := pageToken.Take(); err == nil {
		ms, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "polygon: invalid page token %q", token)
		}

		from = time.UnixMilli(ms + 1)
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: c.timespan.Multiplier(),
		Timespan:   c.timespan.Polygon(),
		From:       models.Millis(from),
		To:         models.Millis(end),
	}.WithLimit(c.pageSize).WithOrder(models.Asc)

	it := c.api.ListAggs(ctx, params)

	bars := make([]types.Bar, 0, c.pageSize)
	for len(bars) < c.pageSize && it.Next() {
		agg := it.Item()

		ts := time.Time(agg.Timestamp).UTC()
		if !ts.Before(end) {
			break
		}

		bars = append(bars, types.Bar{
			Symbol:     symbol,
			Time:       ts,
			Open:       agg.Open,
			High:       agg.High,
			Low:        agg.Low,
			Close:      agg.Close,
			Volume:     agg.Volume,
			TradeCount: agg.Transactions,
			VWAP:       agg.VWAP,
		})
	}

	if err := it.Err(); err != nil {
		return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "polygon: list aggregates for %s", symbol)
	}

	if len(bars) == 0 {
		return lastPage(nil), nil
	}

	return nextPage(bars, c.pageSize, fmt.Sprintf("%d", bars[len(bars)-1].Time.UnixMilli())), nil
}
