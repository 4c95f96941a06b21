package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by method and response status.",
	}, []string{"method", "status"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "session",
		Name:      "refresh_total",
		Help:      "Access token refresh attempts by outcome.",
	}, []string{"outcome"})

	sessionExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mealplan",
		Subsystem: "session",
		Name:      "expired_total",
		Help:      "Sessions terminated after a failed refresh-and-retry cycle.",
	})
)
