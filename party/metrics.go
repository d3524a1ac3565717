package party

import "github.com/prometheus/client_golang/prometheus"

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "party",
		Name:      "operations_total",
		Help:      "Party operations by kind and outcome.",
	}, []string{"op", "result"})

	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "party",
		Name:      "notifications_total",
		Help:      "Player-facing party notifications pushed.",
	}, []string{"kind"})

	suppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "party",
		Name:      "member_changes_suppressed_total",
		Help:      "Duplicate member change callbacks dropped by the status cache.",
	})
)

// RegisterMetrics registers the party metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(operationsTotal, notificationsTotal, suppressedTotal)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	operationsTotal.WithLabelValues(op, result).Inc()
}
