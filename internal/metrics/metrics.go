// README: Prometheus collectors for dispatch, offer resolution and trip lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridedesk"

var (
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "dispatch_total", Help: "Dispatch calls by outcome"},
		[]string{"kind", "outcome"},
	)
	OffersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "offers_created_total", Help: "Offers written to the ledger"},
		[]string{"kind"},
	)
	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "notify_failures_total", Help: "Notification publishes that failed"},
	)
	AcceptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "accept_total", Help: "Offer accept attempts by outcome"},
		[]string{"outcome"},
	)
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trip_transitions_total", Help: "Trip status transitions"},
		[]string{"kind", "to"},
	)
	PresenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "presence_updates_total", Help: "Driver presence writes by availability"},
		[]string{"availability"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
