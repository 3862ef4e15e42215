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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heliosgrid/solarperf/pkg/validation"
	"github.com/heliosgrid/solarperf/services/analytics"
	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

// entityGroup is the per-entity slice of one mixed telemetry batch,
// with the raw reading count kept for availability math.
type entityGroup struct {
	id      string
	raw     int
	samples []analytics.Sample
}

// groupByEntity splits a batch by EntityID, preserving first-seen
// order so leaderboard ties stay deterministic.
func groupByEntity(samples []analytics.Sample) []entityGroup {
	index := make(map[string]int)
	groups := make([]entityGroup, 0)
	for _, s := range samples {
		i, ok := index[s.EntityID]
		if !ok {
			i = len(groups)
			index[s.EntityID] = i
			groups = append(groups, entityGroup{id: s.EntityID})
		}
		groups[i].raw++
		groups[i].samples = append(groups[i].samples, s)
	}
	return groups
}

// SiteSkids serves GET /api/sites/:siteID/skids: every skid under the
// site ranked worst-first by deviation percentage.
func (h *Handlers) SiteSkids(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.SiteSkids")
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
		return h.store.SkidSamples(ctx, siteID, w)
	}, window)
	if err != nil {
		h.requestLog(c).Error("skid telemetry query failed", "site_id", siteID, "error", err)
		h.writeError(c, http.StatusInternalServerError, "WarehouseError", "telemetry query failed")
		return
	}

	endpoint := c.FullPath()
	ranked, _, dropped, err := h.rankEntities(samples)
	if err != nil {
		h.requestLog(c).Error("skid ranking failed", "site_id", siteID, "error", err)
		h.writeError(c, http.StatusInternalServerError, "InternalError", "ranking failed")
		return
	}
	if len(ranked) == 0 {
		h.writeError(c, http.StatusNotFound, "NoDataFound",
			"no skid telemetry for site in requested window or the month before it")
		return
	}
	if fellBack {
		h.recordFallback(endpoint)
	}
	h.recordDropped(endpoint, dropped, 0)

	skids := make([]datatypes.SkidPerformance, 0, len(ranked))
	for _, e := range ranked {
		skids = append(skids, datatypes.SkidPerformance{
			SkidID:              e.EntityID,
			SkidName:            h.cfg.SkidName(siteID, e.EntityID),
			AvgActualPower:      e.AvgActualPower,
			AvgExpectedPower:    e.AvgExpectedPower,
			DeviationPercentage: e.Metrics.DeviationPercentage,
			AlertLevel:          e.Metrics.AlertLevel.String(),
			DataPointCount:      e.DataPointCount,
		})
		h.recordAlert(e.Metrics.AlertLevel)
	}

	c.JSON(http.StatusOK, datatypes.SkidsResponse{
		SiteID:     siteID,
		Skids:      skids,
		TotalCount: len(skids),
		DataMonth:  served.Month(),
	})
}

// SkidInverters serves GET /api/skids/:skidID/inverters: every
// inverter under the skid ranked worst-first by deviation, with the
// share of raw readings that passed the quality filter reported as
// availability.
func (h *Handlers) SkidInverters(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.SkidInverters")
	defer span.End()

	skidID := c.Param("skidID")
	if err := validation.ValidateEntityID(skidID); err != nil {
		h.writeError(c, http.StatusBadRequest, "InvalidSkidID", err.Error())
		return
	}
	span.SetAttributes(attribute.String("skid_id", skidID))

	window, err := h.window(c)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "InvalidWindow", err.Error())
		return
	}

	samples, served, fellBack, err := fetchWithFallback(ctx, func(ctx context.Context, w warehouse.Window) ([]analytics.Sample, error) {
		return h.store.InverterSamples(ctx, skidID, w)
	}, window)
	if err != nil {
		h.requestLog(c).Error("inverter telemetry query failed", "skid_id", skidID, "error", err)
		h.writeError(c, http.StatusInternalServerError, "WarehouseError", "telemetry query failed")
		return
	}

	endpoint := c.FullPath()
	ranked, reports, dropped, err := h.rankEntities(samples)
	if err != nil {
		h.requestLog(c).Error("inverter ranking failed", "skid_id", skidID, "error", err)
		h.writeError(c, http.StatusInternalServerError, "InternalError", "ranking failed")
		return
	}
	if len(ranked) == 0 {
		h.writeError(c, http.StatusNotFound, "NoDataFound",
			"no inverter telemetry for skid in requested window or the month before it")
		return
	}
	if fellBack {
		h.recordFallback(endpoint)
	}
	h.recordDropped(endpoint, dropped, 0)

	inverters := make([]datatypes.InverterPerformance, 0, len(ranked))
	for _, e := range ranked {
		availability := 0.0
		if raw := reports[e.EntityID].raw; raw > 0 {
			availability = float64(e.DataPointCount) / float64(raw)
		}
		inverters = append(inverters, datatypes.InverterPerformance{
			InverterID:          e.EntityID,
			AvgActualPower:      e.AvgActualPower,
			AvgExpectedPower:    e.AvgExpectedPower,
			DeviationPercentage: e.Metrics.DeviationPercentage,
			Availability:        availability,
			DataPointCount:      e.DataPointCount,
		})
		h.recordAlert(e.Metrics.AlertLevel)
	}

	c.JSON(http.StatusOK, datatypes.InvertersResponse{
		SkidID:     skidID,
		Inverters:  inverters,
		TotalCount: len(inverters),
		DataMonth:  served.Month(),
	})
}

// rankEntities builds a per-entity report for each group in the batch
// and ranks the usable ones worst-first by deviation. Entities whose
// every reading fails the quality filter are left off the leaderboard
// rather than shown with fabricated zeros. Returns the ranked list,
// the per-entity groups keyed by ID, and the total count of readings
// the filter dropped.
func (h *Handlers) rankEntities(samples []analytics.Sample) ([]analytics.RankedEntity, map[string]entityGroup, int, error) {
	ppa := h.rates.Snapshot()
	groups := groupByEntity(samples)
	byID := make(map[string]entityGroup, len(groups))

	entities := make([]analytics.RankedEntity, 0, len(groups))
	dropped := 0
	for _, g := range groups {
		byID[g.id] = g
		report := analytics.BuildReport(g.id, g.samples, ppa)
		dropped += g.raw - report.Summary.PointCount
		if report.NeedsFallback {
			continue
		}
		entities = append(entities, analytics.RankedEntity{
			EntityID:         g.id,
			AvgActualPower:   report.Summary.AvgActualPower,
			AvgExpectedPower: report.Summary.AvgExpectedPower,
			DataPointCount:   report.Summary.PointCount,
			Metrics:          report.Summary.Metrics,
		})
	}

	ranked, err := analytics.Rank(entities, analytics.RankByDeviation, analytics.Ascending, 0)
	if err != nil {
		return nil, nil, 0, err
	}
	return ranked, byID, dropped, nil
}
