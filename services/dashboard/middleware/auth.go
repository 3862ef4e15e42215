// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the dashboard service:
// basic auth, request IDs, and rate limiting for the diagnostic query
// endpoint.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
)

// BasicAuth enforces HTTP basic auth against one static credential
// pair. An empty user disables auth entirely, which is the local
// development mode.
//
// Comparison is constant-time so response timing leaks nothing about
// prefix matches.
func BasicAuth(user, password string) gin.HandlerFunc {
	if user == "" {
		return func(c *gin.Context) { c.Next() }
	}

	userBytes := []byte(user)
	passwordBytes := []byte(password)

	return func(c *gin.Context) {
		gotUser, gotPassword, ok := c.Request.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(gotUser), userBytes) == 1
		passwordMatch := subtle.ConstantTimeCompare([]byte(gotPassword), passwordBytes) == 1
		if !ok || !userMatch || !passwordMatch {
			c.Header("WWW-Authenticate", `Basic realm="solarperf"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{
				Error:   "Unauthorized",
				Message: "valid credentials are required",
			})
			return
		}
		c.Next()
	}
}
