package mq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mq_client"

const (
	workerPusher = "pusher"
	workerPuller = "puller"
)

var (
	// requestsSent counts requests written to the server by the pusher.
	requestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_sent_total",
			Help:      "Total number of requests transmitted by the pusher",
		},
		[]string{"method"},
	)

	// requestsDropped counts outgoing requests abandoned after a failed exchange.
	requestsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_dropped_total",
			Help:      "Total number of outgoing requests dropped after a transmission failure",
		},
	)

	// dialFailures counts failed connection attempts per worker.
	dialFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dial_failures_total",
			Help:      "Total number of failed connection attempts",
		},
		[]string{"worker"},
	)

	// badResponses counts poll responses without the success token.
	badResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bad_responses_total",
			Help:      "Total number of poll responses that were not 200 OK or could not be parsed",
		},
	)

	messagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages pulled into the incoming queue",
		},
	)
)
