package ftue

import "github.com/prometheus/client_golang/prometheus"

var (
	validationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "ftue",
		Name:      "validations_total",
		Help:      "Dialogue validations by outcome.",
	}, []string{"result"})

	dialoguesShown = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "ftue",
		Name:      "dialogues_shown_total",
		Help:      "Dialogues initialized on screen.",
	}, []string{"dialogue"})

	dialoguesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "abwars",
		Subsystem: "ftue",
		Name:      "dialogues_skipped_total",
		Help:      "Dialogues skipped because their highlight target was unresolved.",
	})
)

// RegisterMetrics registers the tutorial metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(validationsTotal, dialoguesShown, dialoguesSkipped)
}
