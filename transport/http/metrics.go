package transporthttp

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestsTotal counts backend HTTP attempts by route and outcome.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "abwars_http_requests_total",
		Help: "Total number of backend HTTP request attempts",
	},
	[]string{"route", "status"},
)

// RequestDuration observes per-attempt latency.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "abwars_http_request_duration_seconds",
		Help:    "Backend HTTP request attempt duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"},
)

// RegisterMetrics registers transport metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(RequestsTotal, RequestDuration)
}

func observeRequest(route string, status int, err error, elapsed time.Duration) {
	label := strconv.Itoa(status)
	if err != nil {
		label = "error"
	}

	RequestsTotal.WithLabelValues(route, label).Inc()
	RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
