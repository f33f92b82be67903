package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	lastIC      *prometheus.GaugeVec
	rowsTotal   *prometheus.CounterVec
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphalab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphalab_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastIC: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphalab_alpha_last_ic",
				Help: "Most recent defined daily IC per alpha",
			},
			[]string{"alpha"},
		),
		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphalab_rows_loaded_total",
				Help: "Rows read from storage per source table",
			},
			[]string{"source"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordIC sets the last IC gauge; undefined values are ignored.
func (r *Recorder) RecordIC(alpha string, ic float64) {
	if math.IsNaN(ic) || math.IsInf(ic, 0) {
		return
	}
	r.lastIC.WithLabelValues(alpha).Set(ic)
}

// RecordRows counts rows read from a source.
func (r *Recorder) RecordRows(source string, rows int) {
	r.rowsTotal.WithLabelValues(source).Add(float64(rows))
}
