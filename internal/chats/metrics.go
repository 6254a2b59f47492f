package chats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var membershipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_membership_transitions_total",
	Help: "Bot membership changes applied to the chat registry, by transition",
}, []string{"transition"})
