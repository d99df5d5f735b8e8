// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "butler_tool_calls_total",
		Help: "Total number of dispatched tool calls",
	}, []string{"tool", "outcome"})

	orderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "butler_order_outcomes_total",
		Help: "Order workflow outcomes by platform and status",
	}, []string{"platform", "status"})

	modelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "butler_model_requests_total",
		Help: "Total number of model round-trips",
	}, []string{"outcome"})

	platformRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "butler_platform_requests_total",
		Help: "Total number of platform adapter operations",
	}, []string{"platform", "op", "outcome"})

	modelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "butler_model_latency_seconds",
		Help:    "Model round-trip latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeBlocked = "blocked"
	OutcomeUnknown = "unknown"
)

// RecordToolCall counts one dispatched call.
func RecordToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordOrderOutcome counts a terminal order status.
func RecordOrderOutcome(platform, status string) {
	orderOutcomes.WithLabelValues(platform, status).Inc()
}

// RecordPlatformRequest counts one adapter operation.
func RecordPlatformRequest(platform, op string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	platformRequests.WithLabelValues(platform, op, outcome).Inc()
}

// RecordModelRequest counts a model round-trip and observes its latency.
func RecordModelRequest(outcome string, started time.Time) {
	modelRequests.WithLabelValues(outcome).Inc()
	modelLatency.Observe(time.Since(started).Seconds())
}
