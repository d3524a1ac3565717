package userinfo

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "userinfo",
		Name:      "cache_hits_total",
		Help:      "User ids answered from the cache.",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "userinfo",
		Name:      "cache_misses_total",
		Help:      "User ids sent to the provider.",
	})

	queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "userinfo",
		Name:      "queries_total",
		Help:      "Provider queries by outcome.",
	}, []string{"result"})
)

// RegisterMetrics registers the cache metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(cacheHits, cacheMisses, queriesTotal)
}
