package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var panelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_panel_requests_total",
	Help: "Panel API requests, by response status code",
}, []string{"status"})
