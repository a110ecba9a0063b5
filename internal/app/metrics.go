package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Queue metrics, labelled by persistence key.
var (
	eventsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outqueue_events_enqueued_total",
		Help: "Events admitted into the queue",
	}, []string{"queue"})

	eventsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outqueue_events_sent_total",
		Help: "Events confirmed delivered by the collector",
	}, []string{"queue"})

	eventsOversizeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outqueue_events_oversize_total",
		Help: "Events too large for any batch, sent alone or dropped",
	}, []string{"queue"})

	eventsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outqueue_events_dropped_total",
		Help: "Events removed without delivery, by reason",
	}, []string{"queue", "reason"})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outqueue_requests_total",
		Help: "Collector requests by outcome",
	}, []string{"queue", "outcome"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outqueue_request_duration_seconds",
		Help:    "Time from POST to terminal outcome",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"queue"})

	pendingEvents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outqueue_pending_events",
		Help: "Events waiting for delivery",
	}, []string{"queue"})

	persistFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outqueue_persist_failures_total",
		Help: "Failed writes to the persistent buffer",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(eventsEnqueuedTotal)
	prometheus.MustRegister(eventsSentTotal)
	prometheus.MustRegister(eventsOversizeTotal)
	prometheus.MustRegister(eventsDroppedTotal)
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(pendingEvents)
	prometheus.MustRegister(persistFailuresTotal)
}
