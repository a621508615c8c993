package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const outcomeSuccess = "success"

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_operations_total",
		Help: "Payment operations by operation and outcome; failures are labelled with their API error code.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_operation_duration_seconds",
		Help:    "End-to-end time of a payment operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_operation_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "stage"})
)

// GetOperationsTotal is exposed for tests.
func GetOperationsTotal() *prometheus.CounterVec { return operationsTotal }

func GetOperationDuration() *prometheus.HistogramVec { return operationDuration }

func GetStageDuration() *prometheus.HistogramVec { return stageDuration }
