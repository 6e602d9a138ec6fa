package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/internal/config"
	"github.com/ashourz/AlgoRoyale-sub002/internal/strategy"
	"github.com/ashourz/AlgoRoyale-sub002/internal/walkforward"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/marketdata/writer"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	setup := walkforward.Setup{Config: e.cfg, Store: e.store, Client: nil, Logger: e.log, Recorder: e.recorder}

	if !cmd.Bool("skip-ingest") {
		client, closer, err := marketdata.NewHistoricalClient(e.cfg.Provider)
		if err != nil {
			return err
		}
		defer closer.Close()

		setup.Client = client
	}

	driver, pairs, err := walkforward.Build(setup)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(pairs),
		progressbar.OptionSetDescription("Walk-forward windows"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
	)

	driver.OnPairDone(func(_ int, _ walkforward.WindowPair) {
		_ = bar.Add(1)
	})

	report, err := driver.Run(ctx, pairs)
	_ = bar.Finish()

	if err != nil {
		return err
	}

	e.log.Info("Walk-forward run completed",
		zap.Int("pairs", report.Pairs),
		zap.Int("symbols", len(report.Summaries)),
		zap.Duration("elapsed", report.Elapsed),
	)

	return printJSON(cmd.Root().Writer, report.Allocation)
}

func evaluateAction(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	driver, _, err := walkforward.Build(walkforward.Setup{Config: e.cfg, Store: e.store, Client: nil, Logger: e.log, Recorder: e.recorder})
	if err != nil {
		return err
	}

	summaries, err := driver.Evaluate(ctx)
	if err != nil {
		return err
	}

	return printJSON(cmd.Root().Writer, summaries)
}

func portfolioAction(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	driver, pairs, err := walkforward.Build(walkforward.Setup{Config: e.cfg, Store: e.store, Client: nil, Logger: e.log, Recorder: e.recorder})
	if err != nil {
		return err
	}

	allocation, err := driver.Portfolio(ctx, pairs)
	if err != nil {
		return err
	}

	return printJSON(cmd.Root().Writer, allocation)
}

func strategiesAction(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	combinator, err := e.cfg.Combinator.Build()
	if err != nil {
		return err
	}

	templates := slices.Collect(combinator.Templates())

	m, err := strategy.NewFactory(e.store, e.log).WriteStrategyMap(ctx, templates)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for _, t := range templates {
		fmt.Fprintln(w, t.Name())
	}

	fmt.Fprintf(w, "%d templates, strategy map version %s\n", len(templates), m.Version)

	return nil
}

func windowsAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	start, end, err := cfg.Schedule.Bounds()
	if err != nil {
		return err
	}

	pairs, err := walkforward.GenerateWindows(walkforward.Schedule{
		Start:     start,
		End:       end,
		TrainDays: cfg.Schedule.TrainDays,
		TestDays:  cfg.Schedule.TestDays,
		StepDays:  cfg.Schedule.StepDays,
	})
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for i, p := range pairs {
		fmt.Fprintf(w, "%3d  train %s  test %s\n", i+1, p.Train.ID(), p.Test.ID())
	}

	return nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		return os.WriteFile(path, []byte(schema+"\n"), 0o644)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	client, closer, err := marketdata.NewHistoricalClient(e.cfg.Provider)
	if err != nil {
		return err
	}
	defer closer.Close()

	symbol := strings.ToUpper(cmd.String("symbol"))
	start, end := cmd.Timestamp("start").UTC(), cmd.Timestamp("end").UTC()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", symbol)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
	)

	fetcher := marketdata.NewFetcher(client, e.log, e.recorder, e.cfg.Ingest.Attempts, e.cfg.Ingest.Backoff)

	path, n, err := fetcher.Download(ctx, writer.NewDuckDBWriter(cmd.String("output")), symbol, start, end, func(bars int) {
		_ = bar.Set(bars)
	})
	_ = bar.Finish()

	if err != nil {
		return err
	}

	e.log.Info("Download completed", zap.String("symbol", symbol), zap.Int("bars", n), zap.String("path", path))

	return nil
}

func providersAction(_ context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer

	for _, name := range marketdata.GetSupportedProviders() {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			return err
		}

		auth := ""
		if info.RequiresAuth {
			auth = " (requires credentials)"
		}

		fmt.Fprintf(w, "%-12s %s%s\n", info.Name, info.Description, auth)
	}

	return nil
}
