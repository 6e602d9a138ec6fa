// Package metrics records pipeline and runtime counters with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walkforward"

// Recorder owns its registry so several recorders can coexist in one process.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	pagesWritten   *prometheus.CounterVec
	pagesSkipped   *prometheus.CounterVec
	ioRetries      *prometheus.CounterVec
	trials         *prometheus.CounterVec
	units          *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	signalsEmitted *prometheus.CounterVec
	barsReceived   *prometheus.CounterVec
}

// New creates a recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pagesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_written_total",
				Help:      "Total number of CSV pages written by stage",
			},
			[]string{"stage"},
		),
		pagesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_skipped_total",
				Help:      "Total number of pages skipped by stage and reason",
			},
			[]string{"stage", "reason"},
		),
		ioRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "io_retries_total",
				Help:      "Total number of retried I/O operations",
			},
			[]string{"operation"},
		),
		trials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trials_total",
				Help:      "Total number of optimisation trials by outcome",
			},
			[]string{"outcome"},
		),
		units: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_total",
				Help:      "Total number of (symbol, strategy, window) units by stage and result",
			},
			[]string{"stage", "result"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of stage units in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage"},
		),
		signalsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_emitted_total",
				Help:      "Total number of non-HOLD signals emitted online",
			},
			[]string{"symbol", "signal"},
		),
		barsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_received_total",
				Help:      "Total number of streamed bars received",
			},
			[]string{"symbol"},
		),
	}
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return prometheus.NewRegistry()
	}

	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry(), promhttp.HandlerOpts{})
}

// PageWritten records a successfully published page.
func (r *Recorder) PageWritten(stage string) {
	if r == nil {
		return
	}

	r.pagesWritten.WithLabelValues(stage).Inc()
}

// PageSkipped records a page dropped for the given reason.
func (r *Recorder) PageSkipped(stage, reason string) {
	if r == nil {
		return
	}

	r.pagesSkipped.WithLabelValues(stage, reason).Inc()
}

// IORetry records a retried I/O attempt.
func (r *Recorder) IORetry(operation string) {
	if r == nil {
		return
	}

	r.ioRetries.WithLabelValues(operation).Inc()
}

// Trial records an optimisation trial outcome.
func (r *Recorder) Trial(outcome string) {
	if r == nil {
		return
	}

	r.trials.WithLabelValues(outcome).Inc()
}

// Unit records the result of one unit of stage work and its duration.
func (r *Recorder) Unit(stage, result string, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.units.WithLabelValues(stage, result).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// SignalEmitted records an online BUY or SELL.
func (r *Recorder) SignalEmitted(symbol, signal string) {
	if r == nil {
		return
	}

	r.signalsEmitted.WithLabelValues(symbol, signal).Inc()
}

// BarReceived records a streamed bar.
func (r *Recorder) BarReceived(symbol string) {
	if r == nil {
		return
	}

	r.barsReceived.WithLabelValues(symbol).Inc()
}
