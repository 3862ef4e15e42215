// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
)

// QueryRateLimit applies a shared token bucket to the diagnostic query
// endpoint. Each question can fan out to the whole fleet and may call
// the LLM backend, so the cap is per process, not per client.
func QueryRateLimit(perMinute int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
				Error:   "RateLimited",
				Message: "too many diagnostic queries, retry shortly",
			})
			return
		}
		c.Next()
	}
}
