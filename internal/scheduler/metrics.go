package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terminator",
		Name:      "candidates_checked_total",
		Help:      "Verification attempts by protocol and outcome.",
	}, []string{"protocol", "outcome"})

	failuresByReason = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terminator",
		Name:      "failures_total",
		Help:      "Failed verification attempts by classified reason.",
	}, []string{"reason"})
)
