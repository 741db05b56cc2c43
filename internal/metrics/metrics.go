package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the pipeline's Prometheus instruments.
type Metrics struct {
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	lastProbability prometheus.Gauge
	seriesRows      prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

// New registers and returns the metric set. Call once per process.
func New() *Metrics {
	return &Metrics{
		cycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbot_cycles_total",
				Help: "Update cycles run, by outcome status",
			},
			[]string{"status"},
		),
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockbot_cycle_duration_seconds",
				Help:    "Duration of update cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		lastProbability: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockbot_last_probability",
				Help: "Most recent model probability of an up day",
			},
		),
		seriesRows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockbot_series_rows",
				Help: "Number of rows in the persisted series",
			},
		),
		httpRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbot_http_requests_total",
				Help: "HTTP requests served, by path and status code",
			},
			[]string{"path", "code"},
		),
	}
}

// ObserveCycle records one finished update cycle.
func (m *Metrics) ObserveCycle(status string, seconds float64) {
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(seconds)
}

// SetLastProbability records the most recent model output.
func (m *Metrics) SetLastProbability(p float64) {
	m.lastProbability.Set(p)
}

// SetSeriesRows records the persisted series length.
func (m *Metrics) SetSeriesRows(n int) {
	m.seriesRows.Set(float64(n))
}

// RecordRequest counts one served HTTP request.
func (m *Metrics) RecordRequest(path string, code int) {
	m.httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}
