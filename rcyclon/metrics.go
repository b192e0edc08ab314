package rcyclon

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors updated by an [Overlay].
type Metrics struct {
	ViewSize prometheus.Gauge

	ExchangesStarted   prometheus.Counter
	ExchangesCompleted prometheus.Counter
	ExchangesFailed    prometheus.Counter

	ExchangeRequestsServed prometheus.Counter

	BroadcastsSent      prometheus.Counter
	BroadcastsDelivered prometheus.Counter
	BroadcastDuplicates prometheus.Counter
	UnicastsSent        prometheus.Counter
	UnicastsDelivered   prometheus.Counter
	InboundDropped      prometheus.Counter
}

// NewMetrics creates the overlay collectors and registers them on reg.
// A nil reg leaves them unregistered.
// Registration failures, such as a duplicate registration, panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	register := func(c prometheus.Collector) {
		if reg != nil {
			reg.MustRegister(c)
		}
	}

	ng := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rps",
			Subsystem: "cyclon",
			Name:      name,
			Help:      help,
		})
		register(g)
		return g
	}
	nc := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rps",
			Subsystem: "cyclon",
			Name:      name,
			Help:      help,
		})
		register(c)
		return c
	}

	return &Metrics{
		ViewSize: ng("view_size", "Number of entries in the partial view"),

		ExchangesStarted:   nc("exchanges_started_total", "Exchanges initiated by this node"),
		ExchangesCompleted: nc("exchanges_completed_total", "Initiated exchanges that received a reply"),
		ExchangesFailed:    nc("exchanges_failed_total", "Initiated exchanges that failed or timed out"),

		ExchangeRequestsServed: nc("exchange_requests_served_total", "Exchange requests answered for other nodes"),

		BroadcastsSent:      nc("broadcasts_sent_total", "Broadcasts originated by this node"),
		BroadcastsDelivered: nc("broadcasts_delivered_total", "Distinct broadcasts delivered to handlers"),
		BroadcastDuplicates: nc("broadcast_duplicates_total", "Broadcast copies suppressed as duplicates"),
		UnicastsSent:        nc("unicasts_sent_total", "Unicasts that left this node"),
		UnicastsDelivered:   nc("unicasts_delivered_total", "Unicasts delivered to handlers"),
		InboundDropped:      nc("inbound_dropped_total", "Inbound messages dropped as unexpected"),
	}
}
