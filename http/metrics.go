package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratum_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_http_connections_active",
			Help: "Currently open connections",
		},
	)

	connectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_http_connections_total",
			Help: "Total accepted connections",
		},
	)

	parseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_http_parse_failures_total",
			Help: "Requests rejected during parsing, by status code",
		},
		[]string{"status"},
	)
)

func observeRequest(method Method, status Status, start time.Time) {
	code := strconv.Itoa(int(status))
	requestsTotal.WithLabelValues(method.String(), code).Inc()
	requestDuration.WithLabelValues(method.String(), code).Observe(time.Since(start).Seconds())
}

func observeParseFailure(status Status) {
	parseFailures.WithLabelValues(strconv.Itoa(int(status))).Inc()
}
