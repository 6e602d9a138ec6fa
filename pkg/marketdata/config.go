package marketdata

import (
	"fmt"
	"io"

	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/provider"
	"github.com/go-playground/validator/v10"
)

// ClientConfig selects and configures the historical bar provider.
type ClientConfig struct {
	Type          ProviderType              `yaml:"type" json:"type" jsonschema:"title=Provider,enum=duckdb,enum=polygon,enum=binance,enum=clickhouse" default:"duckdb" validate:"required,oneof=duckdb polygon binance clickhouse"`
	Interval      string                    `yaml:"interval" json:"interval" jsonschema:"title=Interval,enum=1m,enum=5m,enum=15m,enum=30m,enum=1h,enum=4h,enum=1d" default:"1h" validate:"required,oneof=1m 5m 15m 30m 1h 4h 1d"`
	PageSize      int                       `yaml:"page_size" json:"page_size" jsonschema:"title=Page Size,minimum=1" default:"5000" validate:"gt=0"`
	DataPath      string                    `yaml:"data_path" json:"data_path" jsonschema:"title=Data Path,description=Parquet or CSV file or glob served by the duckdb provider" validate:"required_if=Type duckdb"`
	PolygonAPIKey string                    `yaml:"polygon_api_key" json:"polygon_api_key" jsonschema:"title=Polygon API Key,description=May be set with POLYGON_API_KEY" validate:"required_if=Type polygon"`
	ClickHouse    provider.ClickHouseConfig `yaml:"clickhouse" json:"clickhouse" validate:"-"`
}

// Validate checks the provider selection and its required settings.
func (c *ClientConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidProvider, "invalid market data config", err)
	}

	if c.Type == ProviderClickHouse {
		if err := validate.Struct(c.ClickHouse); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidProvider, "invalid clickhouse config", err)
		}
	}

	return nil
}

// NewHistoricalClient builds the historical client selected by cfg.Type. The returned
// closer releases provider resources and is never nil.
func NewHistoricalClient(cfg ClientConfig) (HistoricalBarClient, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	interval, err := provider.ParseTimespan(cfg.Interval)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidProvider, "invalid market data config", err)
	}

	switch cfg.Type {
	case ProviderDuckDB:
		client, err := provider.NewDuckDBClient(cfg.DataPath, cfg.PageSize)
		if err != nil {
			return nil, nil, err
		}

		return client, client, nil
	case ProviderPolygon:
		client, err := provider.NewPolygonClient(cfg.PolygonAPIKey, interval, cfg.PageSize)
		if err != nil {
			return nil, nil, err
		}

		return client, nopCloser{}, nil
	case ProviderBinance:
		return provider.NewBinanceClient(interval, cfg.PageSize), nopCloser{}, nil
	case ProviderClickHouse:
		client, err := provider.NewClickHouseClient(cfg.ClickHouse, interval, cfg.PageSize)
		if err != nil {
			return nil, nil, err
		}

		return client, client, nil
	default:
		return nil, nil, errors.New(errors.ErrCodeInvalidProvider, fmt.Sprintf("unsupported provider type: %s", cfg.Type))
	}
}

// NewStreamClient builds the WebSocket stream client.
func NewStreamClient(cfg provider.StreamConfig) (StreamClient, error) {
	return provider.NewWebSocketClient(cfg)
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}
