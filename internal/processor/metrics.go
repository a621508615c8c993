package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess        = "success"
	outcomeConnectorError = "connector_error"
	outcomeTransportError = "transport_error"
	outcomeBuildError     = "build_error"
	outcomeResponseError  = "response_error"
	outcomeCircuitOpen    = "circuit_open"
)

var (
	connectorRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_requests_total",
		Help: "Connector calls by connector, flow and outcome.",
	}, []string{"connector", "flow", "outcome"})

	connectorRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_request_duration_seconds",
		Help:    "Round-trip time of connector HTTP calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector", "flow"})
)

// GetConnectorRequestsTotal is exposed for tests.
func GetConnectorRequestsTotal() *prometheus.CounterVec { return connectorRequestsTotal }

func GetConnectorRequestDuration() *prometheus.HistogramVec { return connectorRequestDuration }
