// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heliosgrid/solarperf/pkg/validation"
	"github.com/heliosgrid/solarperf/services/analytics"
	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

// SitePerformance serves GET /api/sites/:siteID/performance: the
// validated point series plus the summary and fit metrics for one
// site over one evaluation window.
func (h *Handlers) SitePerformance(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.SitePerformance")
	defer span.End()

	siteID := c.Param("siteID")
	if err := validation.ValidateEntityID(siteID); err != nil {
		h.writeError(c, http.StatusBadRequest, "InvalidSiteID", err.Error())
		return
	}
	span.SetAttributes(attribute.String("site_id", siteID))

	window, err := h.window(c)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "InvalidWindow", err.Error())
		return
	}

	samples, served, fellBack, err := fetchWithFallback(ctx, func(ctx context.Context, w warehouse.Window) ([]analytics.Sample, error) {
		return h.store.SiteSamples(ctx, siteID, w)
	}, window)
	if err != nil {
		h.requestLog(c).Error("site telemetry query failed", "site_id", siteID, "error", err)
		h.writeError(c, http.StatusInternalServerError, "WarehouseError", "telemetry query failed")
		return
	}

	report := analytics.BuildReport(siteID, samples, h.rates.Snapshot())
	if report.NeedsFallback {
		h.writeError(c, http.StatusNotFound, "NoDataFound",
			"no telemetry for site in requested window or the month before it")
		return
	}

	endpoint := c.FullPath()
	if fellBack {
		h.recordFallback(endpoint)
	}
	h.recordDropped(endpoint, len(samples), report.Summary.PointCount)
	h.recordAlert(report.Summary.Metrics.AlertLevel)
	span.SetAttributes(
		attribute.Int("data_point_count", report.Summary.PointCount),
		attribute.Bool("data_fallback", fellBack),
	)

	c.JSON(http.StatusOK, performanceResponse(siteID, h.cfg.SiteName(siteID), report, served.Month(), fellBack))
}

// performanceResponse maps a report onto the wire contract. RMSE and
// R² are duplicated at the top level for the dashboard's metric tiles.
func performanceResponse(siteID, siteName string, report analytics.Report, month string, fellBack bool) datatypes.PerformanceResponse {
	points := make([]datatypes.DataPoint, 0, len(report.Points))
	for _, p := range report.Points {
		points = append(points, datatypes.DataPoint{
			Timestamp:            p.Timestamp.UTC().Format(time.RFC3339),
			POAIrradiance:        p.POAIrradiance,
			ActualPower:          p.ActualPower,
			ExpectedPower:        p.ExpectedPower,
			InverterAvailability: p.Availability,
		})
	}

	s := report.Summary
	summary := datatypes.PerformanceSummary{
		DataPointCount:         s.PointCount,
		AvgActualPower:         s.AvgActualPower,
		AvgExpectedPower:       s.AvgExpectedPower,
		AvgPOAIrradiance:       s.AvgPOAIrradiance,
		TotalActualEnergyKWh:   s.TotalActualEnergy,
		TotalExpectedEnergyKWh: s.TotalExpectedEnergy,
		PerformanceRatio:       s.PerformanceRatio,
		DeviationPercentage:    s.Metrics.DeviationPercentage,
		RevenueImpactUSD:       s.Metrics.RevenueImpact,
		AlertLevel:             s.Metrics.AlertLevel.String(),
	}
	if s.PointCount > 0 {
		summary.FirstReading = s.FirstReading.UTC().Format(time.RFC3339)
		summary.LastReading = s.LastReading.UTC().Format(time.RFC3339)
	}

	return datatypes.PerformanceResponse{
		SiteID:       siteID,
		SiteName:     siteName,
		DataPoints:   points,
		Summary:      summary,
		RMSE:         s.Metrics.RMSE,
		RSquared:     s.Metrics.RSquared,
		DataFallback: fellBack,
		DataMonth:    month,
	}
}
