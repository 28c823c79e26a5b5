package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes sampled window statistics as Prometheus metrics.
type Exporter struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	cycles     *prometheus.CounterVec
	attempts   prometheus.Counter
	retries    prometheus.Counter
	rows       prometheus.Counter
	validation prometheus.Counter
	errors     *prometheus.CounterVec
	latency    *prometheus.GaugeVec
	throughput prometheus.Gauge
}

// NewExporter creates an exporter with its own registry, labelled with the
// backend name and run id.
func NewExporter(backend, runID string) *Exporter {
	constLabels := prometheus.Labels{"backend": backend, "run_id": runID}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crankdb_operations_total",
			Help:        "Logical operations by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crankdb_cycles_total",
			Help:        "Workload iterations by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "crankdb_attempts_total",
			Help:        "Backend attempts including retries.",
			ConstLabels: constLabels,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "crankdb_retries_total",
			Help:        "Attempts made after a transient failure.",
			ConstLabels: constLabels,
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "crankdb_rows_total",
			Help:        "Rows returned by successful operations.",
			ConstLabels: constLabels,
		}),
		validation: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "crankdb_validation_failures_total",
			Help:        "Operations whose row count was outside the expected bounds.",
			ConstLabels: constLabels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crankdb_errors_total",
			Help:        "Failed operations by error kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "crankdb_latency_seconds",
			Help:        "Operation latency quantiles over the last sample window.",
			ConstLabels: constLabels,
		}, []string{"quantile"}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "crankdb_throughput_ops",
			Help:        "Operations per second over the last sample window.",
			ConstLabels: constLabels,
		}),
	}
	e.registry.MustRegister(e.operations, e.cycles, e.attempts, e.retries, e.rows, e.validation, e.errors, e.latency, e.throughput)
	return e
}

// Observe publishes one sample window.
func (e *Exporter) Observe(s Stats) {
	if e == nil {
		return
	}
	e.operations.WithLabelValues("success").Add(float64(s.Successes))
	e.operations.WithLabelValues("failure").Add(float64(s.Failures))
	e.cycles.WithLabelValues("success").Add(float64(s.Cycles - s.FailedCycles))
	e.cycles.WithLabelValues("failure").Add(float64(s.FailedCycles))
	e.attempts.Add(float64(s.Attempts))
	e.retries.Add(float64(s.Retries))
	e.rows.Add(float64(s.Rows))
	e.validation.Add(float64(s.ValidationFailures))
	for kind, n := range s.Errors {
		e.errors.WithLabelValues(kind).Add(float64(n))
	}
	e.latency.WithLabelValues("0.5").Set(s.P50Latency.Seconds())
	e.latency.WithLabelValues("0.9").Set(s.P90Latency.Seconds())
	e.latency.WithLabelValues("0.99").Set(s.P99Latency.Seconds())
	e.throughput.Set(s.RequestsPerSec)
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
