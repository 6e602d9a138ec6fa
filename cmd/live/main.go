package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashourz/AlgoRoyale-sub002/internal/config"
	"github.com/ashourz/AlgoRoyale-sub002/internal/features"
	"github.com/ashourz/AlgoRoyale-sub002/internal/live"
	"github.com/ashourz/AlgoRoyale-sub002/internal/live/sink"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/internal/registry"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/version"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/provider"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/writer"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// recordFlushEvery is the number of streamed bars between parquet exports.
const recordFlushEvery = 50

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if err := cfg.ValidateStream(); err != nil {
		return err
	}

	base, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	lg := base.With(zap.String("run_id", uuid.NewString()))
	defer func() { _ = lg.Sync() }()

	recorder := metrics.New()

	st, err := store.New(store.Config{BaseDir: cfg.BaseDir, MaxRowsPerFile: cfg.Store.MaxRowsPerFile}, lg, recorder)
	if err != nil {
		return err
	}

	reg := registry.New(st, strategy.NewFactory(st, lg), lg)
	if err := reg.Load(ctx); err != nil {
		return err
	}

	interval, err := provider.ParseTimespan(cfg.Provider.Interval)
	if err != nil {
		return err
	}

	historical, closer, err := marketdata.NewHistoricalClient(cfg.Provider)
	if err != nil {
		return err
	}
	defer closer.Close()

	stream, err := marketdata.NewStreamClient(cfg.Stream)
	if err != nil {
		return err
	}

	var opts []live.Option
	if cfg.Live.RecordDir != "" {
		opts = append(opts, live.WithBarWriter(writer.NewStreamingDuckDBWriter(cfg.Live.RecordDir, string(interval), recordFlushEvery)))
	}

	runner := live.NewRunner(
		live.Config{
			Interval:       interval.Duration(),
			Prefetch:       cfg.Live.Prefetch,
			ReconnectDelay: cfg.Live.ReconnectDelay,
			MaxReconnects:  cfg.Live.MaxReconnects,
		},
		reg,
		features.NewEngineer(features.DefaultSet(), cfg.Features.MaxLookback, lg, recorder),
		marketdata.NewFetcher(historical, lg, recorder, cfg.Ingest.Attempts, cfg.Ingest.Backoff),
		stream,
		sink.NewLoggingSink(lg),
		lg,
		recorder,
		opts...,
	)

	return runner.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "live",
		Version: version.GetVersion(),
		Usage:   "Stream bars and emit the signals of the selected strategies",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Load the strategy registry and run it against the configured stream",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the configuration `FILE`",
						Value:   "config.yaml",
						Sources: cli.EnvVars("PIPELINE_CONFIG"),
					},
				},
				Action: runAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
