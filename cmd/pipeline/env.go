package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/config"
	"github.com/ashourz/AlgoRoyale-sub002/internal/logger"
	"github.com/ashourz/AlgoRoyale-sub002/internal/metrics"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// env is what every pipeline command shares: the loaded configuration, a logger tagged
// with the run id, the artefact store and the metrics recorder.
type env struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	recorder *metrics.Recorder
	server   *http.Server
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the pipeline configuration `FILE`",
		Value:   "config.yaml",
		Sources: cli.EnvVars("PIPELINE_CONFIG"),
	}
}

func newEnv(cmd *cli.Command) (*env, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	base, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	runID := uuid.NewString()
	log := base.With(zap.String("run_id", runID), zap.String("command", cmd.Name))
	recorder := metrics.New()

	st, err := store.New(store.Config{
		BaseDir:        cfg.BaseDir,
		MaxRowsPerFile: cfg.Store.MaxRowsPerFile,
		RetryAttempts:  cfg.Ingest.Attempts,
		RetryBackoff:   cfg.Ingest.Backoff,
	}, log, recorder)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, log: log, store: st, recorder: recorder, server: nil}

	if cfg.MetricsAddr != "" {
		e.serveMetrics(cfg.MetricsAddr)
	}

	return e, nil
}

func (e *env) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.recorder.Handler())

	e.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Warn("Metrics server stopped", zap.Error(err))
		}
	}()

	e.log.Info("Serving metrics", zap.String("addr", addr))
}

func (e *env) close() {
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = e.server.Shutdown(ctx)
	}

	_ = e.log.Sync()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
