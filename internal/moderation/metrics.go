package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_actions_total",
	Help: "Moderation requests handled, by action and outcome",
}, []string{"action", "outcome"})
