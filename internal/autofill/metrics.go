package autofill

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "autofill",
		Name:      "runs_total",
		Help:      "Auto-fill invocations by outcome.",
	}, []string{"status"})

	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "autofill",
		Name:      "assignments_total",
		Help:      "Slots committed through quick-plan, by meal type.",
	}, []string{"meal_type"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mealplan",
		Subsystem: "autofill",
		Name:      "run_duration_seconds",
		Help:      "Time spent planning and committing one auto-fill.",
		Buckets:   prometheus.DefBuckets,
	})
)
