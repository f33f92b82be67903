package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alphalab",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of factor and pattern endpoints",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphalab",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphalab",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client limiter",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, RateLimited)
	})
}

// ObserveSince records the latency of endpoint from start.
func ObserveSince(endpoint string, start time.Time) {
	EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
