// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the dashboard.
//
// Metrics are exposed on /metrics and cover the request surface plus
// the analytics-specific signals operators alert on: how often the
// previous-month fallback fires, how many raw readings the quality
// filter drops, and which alert levels the fleet is serving.
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "solarperf"

// APIMetrics holds the dashboard's Prometheus metrics. Initialize once
// at startup via InitMetrics().
type APIMetrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: endpoint (route template), status (HTTP code)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// FallbacksTotal counts responses served from the previous month
	// because the requested window had no valid telemetry.
	// Labels: endpoint
	FallbacksTotal *prometheus.CounterVec

	// SamplesDroppedTotal counts raw readings rejected by the quality
	// filter before metrics computation.
	// Labels: endpoint
	SamplesDroppedTotal *prometheus.CounterVec

	// AlertsServedTotal counts alert levels in served reports.
	// Labels: level (GOOD, MONITOR, WARNING, CRITICAL)
	AlertsServedTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *APIMetrics

var initOnce sync.Once

// InitMetrics creates and registers all dashboard metrics. Safe to
// call more than once; registration happens on the first call only.
func InitMetrics() *APIMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &APIMetrics{
			RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "HTTP requests by endpoint and status code.",
			}, []string{"endpoint", "status"}),

			RequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Handler latency by endpoint.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint"}),

			FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fallbacks_total",
				Help:      "Responses served from the previous month fallback window.",
			}, []string{"endpoint"}),

			SamplesDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "samples_dropped_total",
				Help:      "Raw telemetry readings rejected by the quality filter.",
			}, []string{"endpoint"}),

			AlertsServedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "alerts_served_total",
				Help:      "Alert levels of served performance reports.",
			}, []string{"level"}),
		}
	})
	return DefaultMetrics
}

// RecordFallback notes a response served from the previous-month
// window because the requested one was empty.
func (m *APIMetrics) RecordFallback(endpoint string) {
	m.FallbacksTotal.WithLabelValues(endpoint).Inc()
}

// RecordDroppedSamples adds the number of raw readings the quality
// filter rejected while building a response.
func (m *APIMetrics) RecordDroppedSamples(endpoint string, n int) {
	if n > 0 {
		m.SamplesDroppedTotal.WithLabelValues(endpoint).Add(float64(n))
	}
}

// RecordAlert counts the alert level of a served performance report.
func (m *APIMetrics) RecordAlert(level string) {
	m.AlertsServedTotal.WithLabelValues(level).Inc()
}

// Instrument records request counts and latency for every route. Uses
// the route template (e.g. /api/sites/:siteID/performance) as the
// endpoint label to keep cardinality bounded.
func Instrument(metrics *APIMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
