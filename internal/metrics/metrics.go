package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for rates-sentinel.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	indicatorStatus          *prometheus.GaugeVec
	sourceErrorsTotal        *prometheus.CounterVec
	persistErrorsTotal       prometheus.Counter
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rates_sentinel_cycle_duration_seconds",
			Help:    "Duration of full update cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		indicatorStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rates_sentinel_indicator_status",
			Help: "Current indicator status as a one-hot gauge by indicator and status.",
		}, []string{"indicator", "status"}),
		sourceErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rates_sentinel_source_errors_total",
			Help: "Total per-source acquisition failures by indicator and reason.",
		}, []string{"indicator", "reason"}),
		persistErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rates_sentinel_persist_errors_total",
			Help: "Total state persistence failures.",
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rates_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last completed cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.indicatorStatus,
		m.sourceErrorsTotal,
		m.persistErrorsTotal,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// SetIndicatorStatus sets the one-hot status gauge for an indicator.
func (m *Metrics) SetIndicatorStatus(indicator string, status string, active bool) {
	if m == nil {
		return
	}
	value := 0.0
	if active {
		value = 1.0
	}
	m.indicatorStatus.WithLabelValues(indicator, status).Set(value)
}

// IncSourceErrors increments the source error counter for an indicator.
func (m *Metrics) IncSourceErrors(indicator string, reason string) {
	if m == nil {
		return
	}
	m.sourceErrorsTotal.WithLabelValues(indicator, reason).Inc()
}

// IncPersistErrors increments the persistence failure counter.
func (m *Metrics) IncPersistErrors() {
	if m == nil {
		return
	}
	m.persistErrorsTotal.Inc()
}

// SetLastSuccessfulCycleTimestamp sets the last completed cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
