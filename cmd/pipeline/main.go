package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "pipeline",
		Version: version.GetVersion(),
		Usage:   "Walk-forward strategy optimisation, evaluation and portfolio construction",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run every walk-forward window, then evaluate and build the portfolio",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "skip-ingest",
						Usage: "Use bars already in the store instead of fetching them",
					},
				},
				Action: runAction,
			},
			{
				Name:   "evaluate",
				Usage:  "Aggregate the signal tests into evaluations and symbol summaries",
				Flags:  []cli.Flag{configFlag()},
				Action: evaluateAction,
			},
			{
				Name:   "portfolio",
				Usage:  "Allocate across symbols and replay the allocation on every test window",
				Flags:  []cli.Flag{configFlag()},
				Action: portfolioAction,
			},
			{
				Name:   "strategies",
				Usage:  "Write the strategy map and list the generated templates",
				Flags:  []cli.Flag{configFlag()},
				Action: strategiesAction,
			},
			{
				Name:   "windows",
				Usage:  "Print the walk-forward schedule",
				Flags:  []cli.Flag{configFlag()},
				Action: windowsAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the schema to `FILE` instead of stdout",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "download",
				Usage: "Download bars of one symbol into a parquet file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Ticker symbol",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "start",
						Usage:    "Start date in `YYYY-MM-DD` format",
						Required: true,
						Config:   cli.TimestampConfig{Layouts: []string{"2006-01-02"}},
					},
					&cli.TimestampFlag{
						Name:   "end",
						Usage:  "Exclusive end date in `YYYY-MM-DD` format. Defaults to today.",
						Value:  time.Now().UTC().Truncate(24 * time.Hour),
						Config: cli.TimestampConfig{Layouts: []string{"2006-01-02"}},
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Parquet output `FILE`",
						Value:   "bars.parquet",
					},
				},
				Action: downloadAction,
			},
			{
				Name:   "providers",
				Usage:  "List the supported market data providers",
				Action: providersAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
