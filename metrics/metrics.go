// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundTotal counts processed inbound webhook messages per transport.
	InboundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_inbound_total",
		Help: "Inbound messages processed, by transport.",
	}, []string{"transport"})

	// RepliesTotal counts outbound replies handed to a transport sender.
	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_replies_total",
		Help: "Outbound replies attempted, by transport.",
	}, []string{"transport"})

	// DeliveryFailuresTotal counts outbound sends that failed. Failed sends
	// are logged and dropped, never retried.
	DeliveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_delivery_failures_total",
		Help: "Outbound replies that failed to deliver, by transport.",
	}, []string{"transport"})

	// TransitionsTotal counts committed record transitions by target status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_transitions_total",
		Help: "Committed survey record transitions, by resulting status.",
	}, []string{"to"})

	// HTTPDuration observes inbound HTTP handling latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Inbound HTTP request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
)
