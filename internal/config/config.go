// Package config loads the pipeline and live runtime configuration from YAML.
package config

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/evaluation"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/provider"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Environment variables that override secrets in the file.
const (
	EnvPolygonAPIKey      = "POLYGON_API_KEY"
	EnvClickHousePassword = "CLICKHOUSE_PASSWORD"
	EnvStreamAPIKey       = "STREAM_API_KEY"
)

// Config is the root configuration document.
type Config struct {
	BaseDir       string   `yaml:"base_dir" json:"base_dir" jsonschema:"title=Base Directory,description=Root of every stage artefact" default:"data" validate:"required"`
	Watchlist     []string `yaml:"watchlist" json:"watchlist,omitempty" jsonschema:"title=Watchlist,description=Symbols to process" validate:"required_without=WatchlistFile,dive,required"`
	WatchlistFile string   `yaml:"watchlist_file" json:"watchlist_file,omitempty" jsonschema:"title=Watchlist File,description=File with one symbol per line; # starts a comment"`

	Schedule     ScheduleConfig     `yaml:"schedule" json:"schedule"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	Ingest       IngestConfig       `yaml:"ingest" json:"ingest"`
	Features     FeaturesConfig     `yaml:"features" json:"features"`
	Optimization OptimizationConfig `yaml:"optimization" json:"optimization"`
	Evaluation   EvaluationConfig   `yaml:"evaluation" json:"evaluation"`
	Combinator   CombinatorConfig   `yaml:"combinator" json:"combinator"`
	Portfolio    PortfolioConfig    `yaml:"portfolio" json:"portfolio"`
	Live         LiveConfig         `yaml:"live" json:"live"`

	Provider marketdata.ClientConfig `yaml:"provider" json:"provider"`
	// Stream is validated by the live runtime only.
	Stream provider.StreamConfig `yaml:"stream" json:"stream" validate:"-"`

	Concurrency int    `yaml:"concurrency" json:"concurrency" jsonschema:"title=Concurrency,description=Symbols processed in parallel per stage,minimum=1" default:"1" validate:"gte=1"`
	LogLevel    string `yaml:"log_level" json:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error" default:"info" validate:"oneof=debug info warn error"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"title=Metrics Address,description=host:port serving /metrics; empty disables it" validate:"omitempty,hostname_port"`
}

// ScheduleConfig describes the rolling walk-forward windows.
type ScheduleConfig struct {
	Start     string `yaml:"start" json:"start" jsonschema:"title=Start,format=date" validate:"required,datetime=2006-01-02"`
	End       string `yaml:"end" json:"end" jsonschema:"title=End,format=date" validate:"required,datetime=2006-01-02"`
	TrainDays int    `yaml:"train_days" json:"train_days" jsonschema:"minimum=1" default:"180" validate:"gte=1"`
	TestDays  int    `yaml:"test_days" json:"test_days" jsonschema:"minimum=1" default:"30" validate:"gte=1"`
	StepDays  int    `yaml:"step_days" json:"step_days" jsonschema:"minimum=1" default:"30" validate:"gte=1"`
}

// Bounds parses the schedule dates as UTC midnights.
func (s ScheduleConfig) Bounds() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, s.Start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeConfig, err, "invalid schedule start %q", s.Start)
	}

	end, err := time.ParseInLocation(dateLayout, s.End, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeConfig, err, "invalid schedule end %q", s.End)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeInvalidWindow, "schedule end %s is not after start %s", s.End, s.Start)
	}

	return start, end, nil
}

type StoreConfig struct {
	MaxRowsPerFile int `yaml:"max_rows_per_file" json:"max_rows_per_file" jsonschema:"minimum=1" default:"10000" validate:"gte=1"`
}

type IngestConfig struct {
	Attempts int           `yaml:"attempts" json:"attempts" jsonschema:"minimum=1" default:"3" validate:"gte=1"`
	Backoff  time.Duration `yaml:"backoff" json:"backoff" jsonschema:"type=string" default:"500ms" validate:"gte=0"`
}

type FeaturesConfig struct {
	MaxLookback int `yaml:"max_lookback" json:"max_lookback" jsonschema:"minimum=1" default:"200" validate:"gte=1"`
}

// Objective is one optimised metric.
type Objective struct {
	Metric    string `yaml:"metric" json:"metric" validate:"required,oneof=total_return sharpe_ratio win_rate max_drawdown n_trades avg_trade_return profit_factor"`
	Direction string `yaml:"direction" json:"direction" validate:"required,oneof=maximize minimize"`
}

type OptimizationConfig struct {
	NTrials        int         `yaml:"n_trials" json:"n_trials" jsonschema:"minimum=1" default:"50" validate:"gte=1"`
	NStartupTrials int         `yaml:"n_startup_trials" json:"n_startup_trials" jsonschema:"minimum=0" default:"10" validate:"gte=0"`
	Seed           int64       `yaml:"seed" json:"seed" default:"42"`
	Objectives     []Objective `yaml:"objectives" json:"objectives" default:"[{\"metric\":\"sharpe_ratio\",\"direction\":\"maximize\"}]" validate:"required,min=1,dive"`
}

// Thresholds are the per-metric viability checks.
type Thresholds struct {
	TotalReturn float64 `yaml:"total_return" json:"total_return" default:"0.05"`
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio" default:"0.5"`
	WinRate     float64 `yaml:"win_rate" json:"win_rate" default:"0.5" validate:"gte=0,lte=1"`
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown" default:"0.5" validate:"gte=0"`
}

type EvaluationConfig struct {
	MetricType string     `yaml:"metric_type" json:"metric_type" jsonschema:"enum=optimization,enum=test,enum=both" default:"optimization" validate:"oneof=optimization test both"`
	MinScore   float64    `yaml:"min_score" json:"min_score" jsonschema:"minimum=0,maximum=1" default:"0.75" validate:"gte=0,lte=1"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
}

// Settings converts the section for the cross-window evaluator.
func (e EvaluationConfig) Settings() evaluation.Config {
	return evaluation.Config{
		MetricType: e.MetricType,
		MinScore:   e.MinScore,
		Thresholds: evaluation.Thresholds{
			TotalReturn: e.Thresholds.TotalReturn,
			SharpeRatio: e.Thresholds.SharpeRatio,
			WinRate:     e.Thresholds.WinRate,
			MaxDrawdown: e.Thresholds.MaxDrawdown,
		},
	}
}

// CombinatorConfig restricts the enumerated templates. Empty class lists use every
// registered class of the role.
type CombinatorConfig struct {
	Filters []string `yaml:"filters" json:"filters,omitempty"`
	Trends  []string `yaml:"trends" json:"trends,omitempty"`
	Entries []string `yaml:"entries" json:"entries,omitempty"`
	Exits   []string `yaml:"exits" json:"exits,omitempty"`
	Engines []string `yaml:"engines" json:"engines,omitempty"`

	MaxFilter int `yaml:"max_filter" json:"max_filter" default:"1" validate:"gte=1"`
	MaxTrend  int `yaml:"max_trend" json:"max_trend" default:"1" validate:"gte=1"`
	MaxEntry  int `yaml:"max_entry" json:"max_entry" default:"1" validate:"gte=1"`
	MaxExit   int `yaml:"max_exit" json:"max_exit" default:"1" validate:"gte=1"`

	AllowEmptyFilter *bool `yaml:"allow_empty_filter" json:"allow_empty_filter,omitempty" default:"true"`
	AllowEmptyTrend  *bool `yaml:"allow_empty_trend" json:"allow_empty_trend,omitempty" default:"true"`
	AllowEmptyEntry  *bool `yaml:"allow_empty_entry" json:"allow_empty_entry,omitempty" default:"false"`
	AllowEmptyExit   *bool `yaml:"allow_empty_exit" json:"allow_empty_exit,omitempty" default:"false"`
	AllowNoEngine    *bool `yaml:"allow_no_engine" json:"allow_no_engine,omitempty" default:"true"`
}

type PortfolioConfig struct {
	MaxSymbolWeight float64 `yaml:"max_symbol_weight" json:"max_symbol_weight" jsonschema:"exclusiveMinimum=0,maximum=1" default:"0.5" validate:"gt=0,lte=1"`
}

// LiveConfig configures the online runtime.
type LiveConfig struct {
	// Prefetch is the number of warm-up bars; 0 uses each strategy's max window.
	Prefetch       int           `yaml:"prefetch" json:"prefetch" validate:"gte=0"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnect_delay" jsonschema:"type=string" default:"5s" validate:"gte=0"`
	MaxReconnects  int           `yaml:"max_reconnects" json:"max_reconnects" jsonschema:"description=0 reconnects forever" validate:"gte=0"`
	RecordDir      string        `yaml:"record_dir" json:"record_dir,omitempty" jsonschema:"description=Directory receiving streamed bars as parquet; empty disables recording"`
}

var validate = validator.New()

// Default returns a configuration with every default applied and nothing else set.
func Default() *Config {
	c := &Config{} //nolint:exhaustruct
	if err := defaults.Set(c); err != nil {
		panic(err)
	}

	return c
}

// Load reads path, applies defaults and environment overrides, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeConfig, err, "failed to read config %s", path)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if c.WatchlistFile != "" && !filepath.IsAbs(c.WatchlistFile) {
		c.WatchlistFile = filepath.Join(filepath.Dir(path), c.WatchlistFile)
	}

	if err := c.resolveWatchlist(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Parse applies defaults, decodes YAML over them and applies environment overrides
// without validating. Values present in the document win, zeros included.
func Parse(data []byte) (*Config, error) {
	c := &Config{} //nolint:exhaustruct
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, "failed to apply config defaults", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.ErrCodeConfig, "failed to parse config", err)
	}

	c.applyEnv()

	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPolygonAPIKey); v != "" {
		c.Provider.PolygonAPIKey = v
	}

	if v := os.Getenv(EnvClickHousePassword); v != "" {
		c.Provider.ClickHouse.Password = v
	}

	if v := os.Getenv(EnvStreamAPIKey); v != "" {
		c.Stream.APIKey = v
	}
}

// resolveWatchlist appends the symbols of WatchlistFile, upper-cased and de-duplicated.
func (c *Config) resolveWatchlist() error {
	if c.WatchlistFile != "" {
		f, err := os.Open(c.WatchlistFile)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeConfig, err, "failed to open watchlist %s", c.WatchlistFile)
		}

		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line, _, _ := strings.Cut(scanner.Text(), "#")
			if line = strings.TrimSpace(line); line != "" {
				c.Watchlist = append(c.Watchlist, line)
			}
		}

		if err := scanner.Err(); err != nil {
			return errors.Wrapf(errors.ErrCodeConfig, err, "failed to read watchlist %s", c.WatchlistFile)
		}
	}

	symbols := make([]string, 0, len(c.Watchlist))
	for _, s := range c.Watchlist {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !slices.Contains(symbols, s) {
			symbols = append(symbols, s)
		}
	}

	c.Watchlist = symbols

	return nil
}

// Validate checks struct tags, the schedule and the selected provider.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, "invalid config", err)
	}

	if len(c.Watchlist) == 0 {
		return errors.New(errors.ErrCodeConfig, "watchlist is empty")
	}

	if _, _, err := c.Schedule.Bounds(); err != nil {
		return err
	}

	if c.Optimization.NStartupTrials > c.Optimization.NTrials {
		return errors.Newf(errors.ErrCodeConfig, "n_startup_trials %d exceeds n_trials %d", c.Optimization.NStartupTrials, c.Optimization.NTrials)
	}

	if err := c.Provider.Validate(); err != nil {
		return err
	}

	if _, err := c.Combinator.Build(); err != nil {
		return err
	}

	return nil
}

// ValidateStream checks the stream section for the live runtime.
func (c *Config) ValidateStream() error {
	if err := c.Stream.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, "invalid stream config", err)
	}

	return nil
}
