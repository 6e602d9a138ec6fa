package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
)

// binanceMaxLimit is the largest kline page the API serves.
const binanceMaxLimit = 1000

// BinanceKlinesService is the kline request builder of the Binance client.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient is the subset of the Binance client used here.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceAPI struct {
	client *binance.Client
}

func (a binanceAPI) NewKlinesService() BinanceKlinesService {
	return &binanceKlines{service: a.client.NewKlinesService()}
}

type binanceKlines struct {
	service *binance.KlinesService
}

func (k *binanceKlines) Symbol(symbol string) BinanceKlinesService {
	k.service.Symbol(symbol)

	return k
}

func (k *binanceKlines) Interval(interval string) BinanceKlinesService {
	k.service.Interval(interval)

	return k
}

func (k *binanceKlines) StartTime(startTime int64) BinanceKlinesService {
	k.service.StartTime(startTime)

	return k
}

func (k *binanceKlines) EndTime(endTime int64) BinanceKlinesService {
	k.service.EndTime(endTime)

	return k
}

func (k *binanceKlines) Limit(limit int) BinanceKlinesService {
	k.service.Limit(limit)

	return k
}

func (k *binanceKlines) Do(ctx context.Context) ([]*binance.Kline, error) {
	return k.service.Do(ctx)
}

// BinanceClient pages Binance klines. The page token is the start time in milliseconds
// of the next page.
type BinanceClient struct {
	api      BinanceAPIClient
	timespan Timespan
	pageSize int
}

// NewBinanceClient uses the public market data API, which needs no credentials.
func NewBinanceClient(timespan Timespan, pageSize int) *BinanceClient {
	return NewBinanceClientWithAPI(binanceAPI{client: binance.NewClient("", "")}, timespan, pageSize)
}

// NewBinanceClientWithAPI creates a client over an existing API implementation.
func NewBinanceClientWithAPI(api BinanceAPIClient, timespan Timespan, pageSize int) *BinanceClient {
	if pageSize <= 0 || pageSize > binanceMaxLimit {
		pageSize = binanceMaxLimit
	}

	return &BinanceClient{
		api:      api,
		timespan: timespan,
		pageSize: pageSize,
	}
}

// FetchHistoricalBars implements HistoricalBarClient.
func (c *BinanceClient) FetchHistoricalBars(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (BarPage, error) {
	from := start.UnixMilli()
	if token, err := pageToken.Take(); err == nil {
		from, err = strconv.ParseInt(token, 10, 64)
		if err != nil {
			return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "binance: invalid page token %q", token)
		}
	}

	until := end.UnixMilli() - 1
	if from > until {
		return lastPage(nil), nil
	}

	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(c.timespan.Binance()).
		StartTime(from).
		EndTime(until).
		Limit(c.pageSize).
		Do(ctx)
	if err != nil {
		return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "binance: klines for %s", symbol)
	}

	bars, err := klinesToBars(symbol, klines)
	if err != nil {
		return BarPage{}, err
	}

	if len(klines) == 0 {
		return lastPage(nil), nil
	}

	next := klines[len(klines)-1].CloseTime + 1
	if next > until {
		return lastPage(bars), nil
	}

	return nextPage(bars, c.pageSize, strconv.FormatInt(next, 10)), nil
}

// klinesToBars converts Binance klines, which carry prices as decimal strings.
func klinesToBars(symbol string, klines []*binance.Kline) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(klines))

	for _, k := range klines {
		values := make([]float64, 5)
		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "binance: kline %d of %s", k.OpenTime, symbol)
			}

			values[i] = v
		}

		vwap := values[3]
		if quote, err := strconv.ParseFloat(k.QuoteAssetVolume, 64); err == nil && values[4] > 0 {
			vwap = quote / values[4]
		}

		bars = append(bars, types.Bar{
			Symbol:     symbol,
			Time:       time.UnixMilli(k.OpenTime).UTC(),
			Open:       values[0],
			High:       values[1],
			Low:        values[2],
			Close:      values[3],
			Volume:     values[4],
			TradeCount: k.TradeNum,
			VWAP:       vwap,
		})
	}

	return bars, nil
}
