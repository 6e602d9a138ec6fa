package provider

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	pkgerrors "github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

// mockBinanceAPIClient serves klines from memory, honouring start time and limit.
type mockBinanceAPIClient struct {
	klines []*binance.Kline
	err    error
	calls  []*mockBinanceKlinesService
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	s := &mockBinanceKlinesService{client: m, symbol: "", interval: "", start: 0, end: 0, limit: 500}
	m.calls = append(m.calls, s)

	return s
}

type mockBinanceKlinesService struct {
	client   *mockBinanceAPIClient
	symbol   string
	interval string
	start    int64
	end      int64
	limit    int
}

func (m *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	m.symbol = symbol

	return m
}

func (m *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	m.interval = interval

	return m
}

func (m *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	m.start = startTime

	return m
}

func (m *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	m.end = endTime

	return m
}

func (m *mockBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	m.limit = limit

	return m
}

func (m *mockBinanceKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	if m.client.err != nil {
		return nil, m.client.err
	}

	var out []*binance.Kline
	for _, k := range m.client.klines {
		if k.OpenTime >= m.start && k.OpenTime <= m.end && len(out) < m.limit {
			out = append(out, k)
		}
	}

	return out, nil
}

type BinanceClientTestSuite struct {
	suite.Suite
	start time.Time
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func (suite *BinanceClientTestSuite) klines(n int) []*binance.Kline {
	out := make([]*binance.Kline, n)
	for i := range out {
		open := suite.start.Add(time.Duration(i) * time.Hour)
		price := strconv.FormatFloat(100+float64(i), 'f', 2, 64)

		//nolint:exhaustruct // taker volumes are not read
		out[i] = &binance.Kline{
			OpenTime:         open.UnixMilli(),
			Open:             price,
			High:             price,
			Low:              price,
			Close:            price,
			Volume:           "10",
			CloseTime:        open.Add(time.Hour).UnixMilli() - 1,
			QuoteAssetVolume: strconv.FormatFloat(10*(100+float64(i)), 'f', 2, 64),
			TradeNum:         7,
		}
	}

	return out
}

func (suite *BinanceClientTestSuite) TestPagination() {
	api := &mockBinanceAPIClient{klines: suite.klines(5), err: nil, calls: nil}
	client := NewBinanceClientWithAPI(api, TimespanOneHour, 2)
	end := suite.start.Add(24 * time.Hour)

	var (
		closes []float64
		token  = optional.None[string]()
	)

	for {
		page, err := client.FetchHistoricalBars(context.Background(), "BTCUSDT", suite.start, end, token)
		suite.Require().NoError(err)

		for _, b := range page.Bars {
			closes = append(closes, b.Close)
		}

		if page.NextPageToken.IsNone() {
			break
		}

		token = page.NextPageToken
	}

	suite.Equal([]float64{100, 101, 102, 103, 104}, closes)
	suite.Equal("1h", api.calls[0].interval)
	suite.Equal(end.UnixMilli()-1, api.calls[0].end)
}

func (suite *BinanceClientTestSuite) TestBarConversion() {
	api := &mockBinanceAPIClient{klines: suite.klines(1), err: nil, calls: nil}
	client := NewBinanceClientWithAPI(api, TimespanOneHour, 0)

	page, err := client.FetchHistoricalBars(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), optional.None[string]())
	suite.Require().NoError(err)
	suite.Require().Len(page.Bars, 1)
	suite.True(page.NextPageToken.IsNone())

	b := page.Bars[0]
	suite.Equal(suite.start, b.Time)
	suite.InDelta(100.0, b.VWAP, 1e-9)
	suite.Equal(int64(7), b.TradeCount)
	suite.Equal(binanceMaxLimit, api.calls[0].limit)
}

func (suite *BinanceClientTestSuite) TestParseError() {
	k := suite.klines(1)
	k[0].Close = "not-a-number"

	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{klines: k, err: nil, calls: nil}, TimespanOneHour, 10)

	_, err := client.FetchHistoricalBars(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), optional.None[string]())
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataParseFailed))
}

func (suite *BinanceClientTestSuite) TestAPIError() {
	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{klines: nil, err: errors.New("418"), calls: nil}, TimespanOneHour, 10)

	_, err := client.FetchHistoricalBars(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), optional.None[string]())
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataFetchFailed))
}

func (suite *BinanceClientTestSuite) TestTimespans() {
	for _, ts := range Timespans() {
		parsed, err := ParseTimespan(string(ts))
		suite.Require().NoError(err)
		suite.Equal(ts, parsed)
		suite.Positive(ts.Duration())
	}

	suite.Equal(5*time.Minute, TimespanFiveMinutes.Duration())
	suite.Equal(4*time.Hour, TimespanFourHours.Duration())

	_, err := ParseTimespan("7m")
	suite.Error(err)
}
