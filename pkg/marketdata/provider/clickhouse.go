package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/Masterminds/squirrel"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/moznion/go-optional"
)

// ClickHouseConfig locates a candles table with columns symbol, interval,
// open_time_ms (UInt64), open, high, low, close, volume (Float64) and trades (UInt64).
type ClickHouseConfig struct {
	Addr     string `yaml:"addr" json:"addr" validate:"required" default:"localhost:9000"`
	Database string `yaml:"database" json:"database" validate:"required" default:"default"`
	Username string `yaml:"username" json:"username" default:"default"`
	Password string `yaml:"password" json:"password"`
	Table    string `yaml:"table" json:"table" validate:"required" default:"candles"`
}

// ClickHouseClient pages candles with keyset pagination on open_time_ms; the token is
// the last open time served.
type ClickHouseClient struct {
	conn     driver.Conn
	sq       squirrel.StatementBuilderType
	table    string
	interval Timespan
	pageSize int
}

// NewClickHouseClient opens a native connection.
func NewClickHouseClient(cfg ClickHouseConfig, interval Timespan, pageSize int) (*ClickHouseClient, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{Database: cfg.Database, Username: cfg.Username, Password: cfg.Password},
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProvider, "clickhouse: failed to open connection", err)
	}

	return NewClickHouseClientWithConn(conn, cfg.Table, interval, pageSize), nil
}

// NewClickHouseClientWithConn creates a client over an existing connection.
func NewClickHouseClientWithConn(conn driver.Conn, table string, interval Timespan, pageSize int) *ClickHouseClient {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &ClickHouseClient{
		conn:     conn,
		sq:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		table:    table,
		interval: interval,
		pageSize: pageSize,
	}
}

// Query builds the page query. Exposed for tests.
func (c *ClickHouseClient) Query(symbol string, from, until int64, inclusive bool) (string, []any, error) {
	lower := squirrel.Sqlizer(squirrel.GtOrEq{"open_time_ms": from})
	if !inclusive {
		lower = squirrel.Gt{"open_time_ms": from}
	}

	return c.sq.
		Select("open_time_ms", "open", "high", "low", "close", "volume", "trades").
		From(c.table).
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"interval": string(c.interval)},
			lower,
			squirrel.Lt{"open_time_ms": until},
		}).
		OrderBy("open_time_ms").
		Limit(uint64(c.pageSize)).
		ToSql()
}

// FetchHistoricalBars implements HistoricalBarClient.
func (c *ClickHouseClient) FetchHistoricalBars(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (BarPage, error) {
	from, inclusive := start.UnixMilli(), true

	if token, err := pageToken.Take(); err == nil {
		from, err = strconv.ParseInt(token, 10, 64)
		if err != nil {
			return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "clickhouse: invalid page token %q", token)
		}

		inclusive = false
	}

	query, args, err := c.Query(symbol, from, end.UnixMilli(), inclusive)
	if err != nil {
		return BarPage{}, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "clickhouse: query candles of %s", symbol)
	}
	defer rows.Close()

	var (
		bars []types.Bar
		last int64
	)

	for rows.Next() {
		var (
			openTime                            uint64
			open, high, low, closePrice, volume float64
			trades                              uint64
		)

		if err := rows.Scan(&openTime, &open, &high, &low, &closePrice, &volume, &trades); err != nil {
			return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "clickhouse: scan candle of %s", symbol)
		}

		last = int64(openTime)
		bars = append(bars, types.Bar{
			Symbol:     symbol,
			Time:       time.UnixMilli(last).UTC(),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePrice,
			Volume:     volume,
			TradeCount: int64(trades),
			VWAP:       (high + low + closePrice) / 3,
		})
	}

	if err := rows.Err(); err != nil {
		return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "clickhouse: read candles of %s", symbol)
	}

	if len(bars) == 0 {
		return lastPage(nil), nil
	}

	return nextPage(bars, c.pageSize, strconv.FormatInt(last, 10)), nil
}

// Close releases the connection.
func (c *ClickHouseClient) Close() error {
	return c.conn.Close()
}
