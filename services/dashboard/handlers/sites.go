// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
)

// ListSites returns the configured fleet roster. The roster comes from
// config, not the warehouse, so sites with no telemetry yet still
// appear on the dashboard.
func (h *Handlers) ListSites(c *gin.Context) {
	sites := make([]datatypes.SiteSummary, 0, len(h.cfg.Fleet))
	for _, site := range h.cfg.Fleet {
		sites = append(sites, datatypes.SiteSummary{
			SiteID:     site.ID,
			SiteName:   site.Name,
			CapacityMW: site.CapacityMW,
		})
	}

	c.JSON(http.StatusOK, datatypes.SitesResponse{
		Sites:      sites,
		TotalCount: len(sites),
	})
}
