package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"
)

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	aggs   []models.Agg
	err    error
	params []*models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = append(m.params, params)

	var aggs []models.Agg
	for _, a := range m.aggs {
		if !time.Time(a.Timestamp).Before(time.Time(params.From)) {
			aggs = append(aggs, a)
		}
	}

	return &mockPolygonIterator{aggs: aggs, index: 0, err: m.err}
}

// mockPolygonIterator implements PolygonAggsIterator for testing.
type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.err != nil {
		return false
	}

	if m.index < len(m.aggs) {
		m.index++

		return true
	}

	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	return m.aggs[m.index-1]
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type PolygonClientTestSuite struct {
	suite.Suite
	start time.Time
}

func TestPolygonClientSuite(t *testing.T) {
	suite.Run(t, new(PolygonClientTestSuite))
}

func (suite *PolygonClientTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
}

func (suite *PolygonClientTestSuite) aggs(n int) []models.Agg {
	out := make([]models.Agg, n)
	for i := range out {
		//nolint:exhaustruct // only the fields read by the client
		out[i] = models.Agg{
			Timestamp:    models.Millis(suite.start.Add(time.Duration(i) * time.Minute)),
			Open:         100 + float64(i),
			High:         101 + float64(i),
			Low:          99 + float64(i),
			Close:        100.5 + float64(i),
			Volume:       1000,
			VWAP:         100.2 + float64(i),
			Transactions: 12,
		}
	}

	return out
}

func (suite *PolygonClientTestSuite) TestNewPolygonClientRequiresKey() {
	_, err := NewPolygonClient("", TimespanOneMinute, 10)
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeInvalidProvider))

	client, err := NewPolygonClient("key", TimespanOneMinute, 10)
	suite.NoError(err)
	suite.NotNil(client)
}

func (suite *PolygonClientTestSuite) TestPagination() {
	api := &mockPolygonAPIClient{aggs: suite.aggs(5), err: nil, params: nil}
	client := NewPolygonClientWithAPI(api, TimespanOneMinute, 2)
	end := suite.start.Add(time.Hour)

	var (
		all   []time.Time
		token = optional.None[string]()
		pages int
	)

	for {
		page, err := client.FetchHistoricalBars(context.Background(), "SPY", suite.start, end, token)
		suite.Require().NoError(err)

		pages++
		for _, b := range page.Bars {
			suite.Equal("SPY", b.Symbol)
			all = append(all, b.Time)
		}

		if page.NextPageToken.IsNone() {
			break
		}

		token = page.NextPageToken
	}

	suite.Equal(3, pages)
	suite.Require().Len(all, 5)

	for i, ts := range all {
		suite.Equal(suite.start.Add(time.Duration(i)*time.Minute), ts)
	}

	suite.Equal(models.Minute, api.params[0].Timespan)
	suite.Equal(1, api.params[0].Multiplier)
}

func (suite *PolygonClientTestSuite) TestBarConversion() {
	api := &mockPolygonAPIClient{aggs: suite.aggs(1), err: nil, params: nil}
	client := NewPolygonClientWithAPI(api, TimespanOneMinute, 10)

	page, err := client.FetchHistoricalBars(context.Background(), "SPY", suite.start, suite.start.Add(time.Hour), optional.None[string]())
	suite.Require().NoError(err)
	suite.True(page.NextPageToken.IsNone())
	suite.Require().Len(page.Bars, 1)

	b := page.Bars[0]
	suite.InDelta(100.0, b.Open, 1e-9)
	suite.InDelta(101.0, b.High, 1e-9)
	suite.InDelta(99.0, b.Low, 1e-9)
	suite.InDelta(100.5, b.Close, 1e-9)
	suite.InDelta(100.2, b.VWAP, 1e-9)
	suite.Equal(int64(12), b.TradeCount)
}

func (suite *PolygonClientTestSuite) TestEndIsExclusive() {
	api := &mockPolygonAPIClient{aggs: suite.aggs(5), err: nil, params: nil}
	client := NewPolygonClientWithAPI(api, TimespanOneMinute, 10)

	page, err := client.FetchHistoricalBars(context.Background(), "SPY", suite.start, suite.start.Add(3*time.Minute), optional.None[string]())
	suite.Require().NoError(err)
	suite.Len(page.Bars, 3)
}

func (suite *PolygonClientTestSuite) TestIteratorError() {
	api := &mockPolygonAPIClient{aggs: suite.aggs(3), err: errors.New("rate limited"), params: nil}
	client := NewPolygonClientWithAPI(api, TimespanOneMinute, 10)

	_, err := client.FetchHistoricalBars(context.Background(), "SPY", suite.start, suite.start.Add(time.Hour), optional.None[string]())
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataFetchFailed))
}

func (suite *PolygonClientTestSuite) TestInvalidToken() {
	client := NewPolygonClientWithAPI(&mockPolygonAPIClient{aggs: nil, err: nil, params: nil}, TimespanOneMinute, 10)

	_, err := client.FetchHistoricalBars(context.Background(), "SPY", suite.start, suite.start.Add(time.Hour), optional.Some("abc"))
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataParseFailed))
}
