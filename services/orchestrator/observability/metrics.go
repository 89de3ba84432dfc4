// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring streaming
// chat operations. Metrics include:
//   - Request counters (by endpoint and status)
//   - Rate limit rejections
//   - Tool invocation counters (by tool and outcome)
//   - Stream duration histograms and active stream gauges
//   - Conversation eviction and sweep failure counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for chat streaming metrics
const chatSubsystem = "chat"

// ChatMetrics holds all Prometheus metrics for the chat orchestrator.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring streaming
// performance and resource usage. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type ChatMetrics struct {
	// RequestsTotal counts chat requests by status.
	// Labels: status (success, error, rejected)
	RequestsTotal *prometheus.CounterVec

	// RateLimitRejectionsTotal counts requests rejected by the rate
	// limiter.
	RateLimitRejectionsTotal prometheus.Counter

	// ToolInvocationsTotal counts tool invocations by tool and outcome.
	// Labels: tool, outcome (success, error)
	ToolInvocationsTotal *prometheus.CounterVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: status (success, error)
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open streaming connections.
	ActiveStreams prometheus.Gauge

	// ThreadsEvictedTotal counts conversation threads evicted.
	// Labels: reason (ttl, capacity)
	ThreadsEvictedTotal *prometheus.CounterVec

	// SweepFailuresTotal counts checkpoint deletes that failed during
	// eviction.
	SweepFailuresTotal prometheus.Counter

	// ClientDisconnectsTotal counts client disconnections mid-stream.
	ClientDisconnectsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of ChatMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ChatMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Outputs
//
//   - *ChatMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by status",
			},
			[]string{"status"},
		),

		RateLimitRejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "rate_limit_rejections_total",
				Help:      "Total requests rejected by the rate limiter",
			},
		),

		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "tool_invocations_total",
				Help:      "Total tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),

		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open streaming connections",
			},
		),

		ThreadsEvictedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "threads_evicted_total",
				Help:      "Total conversation threads evicted by reason",
			},
			[]string{"reason"},
		),

		SweepFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "sweep_failures_total",
				Help:      "Total checkpoint deletes that failed during eviction",
			},
		),

		ClientDisconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total client disconnections during streaming",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed chat request.
func (m *ChatMetrics) RecordRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// RecordRejection records a rate-limited request.
func (m *ChatMetrics) RecordRejection() {
	m.RequestsTotal.WithLabelValues("rejected").Inc()
	m.RateLimitRejectionsTotal.Inc()
}

// RecordToolInvocation records one tool invocation outcome.
func (m *ChatMetrics) RecordToolInvocation(tool string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.ToolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
}

// StreamStarted increments the active streams gauge.
func (m *ChatMetrics) StreamStarted() {
	m.ActiveStreams.Inc()
}

// StreamEnded decrements the active streams gauge and records the
// stream's duration.
func (m *ChatMetrics) StreamEnded(seconds float64, success bool) {
	m.ActiveStreams.Dec()
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordEviction records a thread eviction.
func (m *ChatMetrics) RecordEviction(reason string) {
	m.ThreadsEvictedTotal.WithLabelValues(reason).Inc()
}

// RecordSweepFailure records a failed checkpoint delete.
func (m *ChatMetrics) RecordSweepFailure() {
	m.SweepFailuresTotal.Inc()
}

// RecordClientDisconnect records a mid-stream client disconnect.
func (m *ChatMetrics) RecordClientDisconnect() {
	m.ClientDisconnectsTotal.Inc()
}
