package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pipetrack",
		Subsystem: "pipeline",
		Name:      "transitions_total",
		Help:      "Total number of transition attempts by outcome.",
	},
	[]string{"transition", "outcome"},
)

// ObserveTransition counts a transition attempt. Meant to be deferred with
// the named error of the transition method.
func ObserveTransition(transition string, err *error) {
	outcome := "accepted"
	if err != nil && *err != nil {
		outcome = "rejected"
	}
	transitionTotal.WithLabelValues(transition, outcome).Inc()
}
