package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mq_broker"

var (
	// requestsTotal counts handled requests by method and response status.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Total number of requests handled by the broker",
		},
		[]string{"method", "status"},
	)

	// messagesEnqueued counts bodies fanned out to subscriber queues.
	messagesEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_enqueued_total",
			Help:      "Total number of messages appended to subscriber queues",
		},
	)

	// messagesDelivered counts bodies handed out to polling clients.
	messagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of messages returned to polling clients",
		},
	)
)
