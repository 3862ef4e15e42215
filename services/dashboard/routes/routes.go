// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the dashboard's HTTP surface: middleware
// ordering, route registration, and the metrics endpoint.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/heliosgrid/solarperf/services/dashboard/handlers"
	"github.com/heliosgrid/solarperf/services/dashboard/middleware"
	"github.com/heliosgrid/solarperf/services/dashboard/observability"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

const serviceName = "solarperf-dashboard"

// SetupRoutes registers all middleware and endpoints on the router.
//
// /health and /metrics stay outside the authenticated group so probes
// and scrapers work without credentials. Everything under /api honors
// basic auth when credentials are configured, and the query endpoint
// additionally carries a rate limit because it fans out across the
// fleet and may call an LLM backend.
func SetupRoutes(router *gin.Engine, h *handlers.Handlers, cfg *warehouse.ServerConfig, metrics *observability.APIMetrics) {
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	if metrics != nil {
		router.Use(observability.Instrument(metrics))
	}

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.BasicAuth(cfg.AuthUser, cfg.AuthPassword))
	{
		api.GET("/sites", h.ListSites)
		api.GET("/sites/:siteID/performance", h.SitePerformance)
		api.GET("/sites/:siteID/skids", h.SiteSkids)
		api.GET("/skids/:skidID/inverters", h.SkidInverters)

		api.POST("/query", middleware.QueryRateLimit(cfg.QueryRatePerMinute), h.Query)
	}
}
