// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the dashboard HTTP API: fleet roster,
// per-site performance reports, skid and inverter leaderboards, and
// the diagnostic query endpoint.
//
// Every data endpoint follows the same shape: validate the entity ID
// before it reaches the warehouse, resolve the evaluation window from
// query parameters (defaulting to the current month), and retry the
// previous calendar month once when the requested window holds no
// valid telemetry. Responses carry data_fallback and data_month so
// clients can tell which window they were actually served.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/services/analytics"
	"github.com/heliosgrid/solarperf/services/assistant"
	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
	"github.com/heliosgrid/solarperf/services/dashboard/middleware"
	"github.com/heliosgrid/solarperf/services/dashboard/observability"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

var tracer = otel.Tracer("solarperf.dashboard.handlers")

// TelemetryStore is the warehouse surface the handlers need. Satisfied
// by *warehouse.Store.
type TelemetryStore interface {
	SiteSamples(ctx context.Context, siteID string, w warehouse.Window) ([]analytics.Sample, error)
	SkidSamples(ctx context.Context, siteID string, w warehouse.Window) ([]analytics.Sample, error)
	InverterSamples(ctx context.Context, skidID string, w warehouse.Window) ([]analytics.Sample, error)
}

// RatesProvider supplies the current PPA rate table. Satisfied by
// *warehouse.Rates.
type RatesProvider interface {
	Snapshot() analytics.PPAConfig
}

// DiagnosticResponder answers natural-language and structured
// diagnostic queries. Satisfied by *assistant.Responder.
type DiagnosticResponder interface {
	Answer(ctx context.Context, question string) (*assistant.Response, error)
	Execute(ctx context.Context, query assistant.Query) (*assistant.Response, error)
}

// Handlers carries the dependencies shared by all API endpoints.
type Handlers struct {
	cfg       *warehouse.Config
	store     TelemetryStore
	rates     RatesProvider
	responder DiagnosticResponder
	metrics   *observability.APIMetrics
	log       *logging.Logger

	// now is injectable for deterministic window defaults in tests.
	now func() time.Time
}

// New builds the handler set. responder may be nil when no diagnostic
// backend is configured; the query endpoint then returns 503.
func New(cfg *warehouse.Config, store TelemetryStore, rates RatesProvider, responder DiagnosticResponder, metrics *observability.APIMetrics, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Default()
	}
	return &Handlers{
		cfg:       cfg,
		store:     store,
		rates:     rates,
		responder: responder,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Health reports service liveness. Unauthenticated.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "solarperf-dashboard",
	})
}

// window resolves the evaluation window from start_date/end_date query
// parameters. Both absent means the current calendar month.
func (h *Handlers) window(c *gin.Context) (warehouse.Window, error) {
	return warehouse.ParseWindow(c.Query("start_date"), c.Query("end_date"), h.now())
}

// requestLog annotates the logger with the request ID so a client-
// reported X-Request-ID can be matched to the server-side failure.
func (h *Handlers) requestLog(c *gin.Context) *logging.Logger {
	if id := middleware.GetRequestID(c); id != "" {
		return h.log.With("request_id", id)
	}
	return h.log
}

func (h *Handlers) writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, datatypes.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

func (h *Handlers) recordFallback(endpoint string) {
	if h.metrics != nil {
		h.metrics.RecordFallback(endpoint)
	}
}

func (h *Handlers) recordDropped(endpoint string, raw, valid int) {
	if h.metrics != nil {
		h.metrics.RecordDroppedSamples(endpoint, raw-valid)
	}
}

func (h *Handlers) recordAlert(level analytics.AlertLevel) {
	if h.metrics != nil {
		h.metrics.RecordAlert(level.String())
	}
}

// fetchFn loads raw samples for one window.
type fetchFn func(ctx context.Context, w warehouse.Window) ([]analytics.Sample, error)

// fetchWithFallback loads the requested window and, when it contains
// no valid telemetry, retries the previous calendar month once. The
// returned window is the one actually served.
func fetchWithFallback(ctx context.Context, fetch fetchFn, w warehouse.Window) ([]analytics.Sample, warehouse.Window, bool, error) {
	samples, err := fetch(ctx, w)
	if err != nil {
		return nil, w, false, err
	}
	if len(analytics.FilterValid(samples)) > 0 {
		return samples, w, false, nil
	}

	prev := w.PreviousMonth()
	prevSamples, err := fetch(ctx, prev)
	if err != nil {
		return nil, w, false, err
	}
	if len(analytics.FilterValid(prevSamples)) > 0 {
		return prevSamples, prev, true, nil
	}

	// Neither window has usable data; report against the requested one.
	return samples, w, false, nil
}
