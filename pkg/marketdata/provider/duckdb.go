package provider

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
)

// BarColumns is the table layout read from local files and written by the DuckDB writer.
var BarColumns = []string{"time", "symbol", "open", "high", "low", "close", "volume", "trade_count", "vwap"}

// DuckDBClient serves bars from local parquet or CSV files through an in-memory DuckDB.
// Pages use keyset pagination on time; the token is the last timestamp served.
type DuckDBClient struct {
	db       *sql.DB
	sq       squirrel.StatementBuilderType
	pageSize int
}

// NewDuckDBClient exposes path, which may be a glob, as the bars view. Files ending in
// .csv are read with read_csv_auto, everything else as parquet.
func NewDuckDBClient(path string, pageSize int) (*DuckDBClient, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "duckdb: data path is required")
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader = "read_csv_auto"
	}

	// Squirrel does not build CREATE VIEW.
	query := fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s('%s')`, reader, strings.ReplaceAll(path, "'", "''"))
	if _, err := db.Exec(query); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeInvalidProvider, err, "duckdb: failed to open %s", path)
	}

	return &DuckDBClient{
		db:       db,
		sq:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		pageSize: pageSize,
	}, nil
}

// FetchHistoricalBars implements HistoricalBarClient.
func (c *DuckDBClient) FetchHistoricalBars(ctx context.Context, symbol string, start, end time.Time, pageToken optional.Option[string]) (BarPage, error) {
	lower := squirrel.Sqlizer(squirrel.GtOrEq{"time": start.UTC()})

	if token, err := pageToken.Take(); err == nil {
		after, err := time.Parse(time.RFC3339Nano, token)
		if err != nil {
			return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "duckdb: invalid page token %q", token)
		}

		lower = squirrel.Gt{"time": after.UTC()}
	}

	query, args, err := c.sq.
		Select(BarColumns...).
		From("bars").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			lower,
			squirrel.Lt{"time": end.UTC()},
		}).
		OrderBy("time ASC").
		Limit(uint64(c.pageSize)).
		ToSql()
	if err != nil {
		return BarPage{}, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "duckdb: query bars of %s", symbol)
	}
	defer rows.Close()

	bars := make([]types.Bar, 0, c.pageSize)

	for rows.Next() {
		var b types.Bar
		if err := rows.Scan(&b.Time, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TradeCount, &b.VWAP); err != nil {
			return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "duckdb: scan bar of %s", symbol)
		}

		b.Time = b.Time.UTC()
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return BarPage{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "duckdb: read bars of %s", symbol)
	}

	if len(bars) == 0 {
		return lastPage(nil), nil
	}

	return nextPage(bars, c.pageSize, bars[len(bars)-1].Time.Format(time.RFC3339Nano)), nil
}

// Close releases the DuckDB connection.
func (c *DuckDBClient) Close() error {
	return c.db.Close()
}
