// Package metrics defines the Prometheus instruments of the scanner.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arbscan"

// Metrics groups every instrument. Construct it once per registry.
type Metrics struct {
	BucketsScanned    prometheus.Counter
	SignalsEmitted    prometheus.Counter
	DetectionRuns     *prometheus.CounterVec
	DetectionDuration prometheus.Histogram
	BacktestRuns      *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram
	Exports           *prometheus.CounterVec
	DatasetBuckets    prometheus.Gauge
	DatasetSignals    prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the instruments and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		BucketsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "buckets_scanned_total",
			Help: "Time buckets evaluated by the signal detector.",
		}),
		SignalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_emitted_total",
			Help: "Signals emitted by the signal detector.",
		}),
		DetectionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "detection_runs_total",
			Help: "Detection runs by outcome.",
		}, []string{"result"}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "detection_duration_seconds",
			Help:    "Wall time of a full detection run, load to publish.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		BacktestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backtest_runs_total",
			Help: "Backtest requests by cache outcome.",
		}, []string{"cache"}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "backtest_duration_seconds",
			Help:    "Simulation time of uncached backtests.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "exports_total",
			Help: "Signal exports written to object storage.",
		}, []string{"format"}),
		DatasetBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dataset_buckets",
			Help: "Buckets held by the in-memory dataset.",
		}),
		DatasetSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dataset_signals",
			Help: "Signals held by the in-memory dataset.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.BucketsScanned, m.SignalsEmitted, m.DetectionRuns, m.DetectionDuration,
		m.BacktestRuns, m.BacktestDuration, m.Exports,
		m.DatasetBuckets, m.DatasetSignals,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
