package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(fanoutDroppedTotal) }

var fanoutDroppedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fanout_events_dropped_total",
		Help: "Total number of websocket events dropped, labeled by reason.",
	},
	[]string{"reason"}, // 'slow_subscriber', 'no_subscriber'
)

func IncFanoutDropped(reason string) {
	fanoutDroppedTotal.WithLabelValues(norm(reason)).Inc()
}
