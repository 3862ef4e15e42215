// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heliosgrid/solarperf/services/assistant"
	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
)

// Query serves POST /api/query. The request carries either a
// free-text question, routed through the intent classifier, or a
// structured kind that skips the language model entirely.
func (h *Handlers) Query(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "handlers.Query")
	defer span.End()

	if h.responder == nil {
		h.writeError(c, http.StatusServiceUnavailable, "AssistantUnavailable",
			"no diagnostic backend is configured")
		return
	}

	var req datatypes.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(c, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	var (
		resp *assistant.Response
		err  error
	)
	if req.Question != "" {
		span.SetAttributes(attribute.Bool("free_text", true))
		resp, err = h.responder.Answer(ctx, req.Question)
	} else {
		span.SetAttributes(attribute.String("kind", req.Kind))
		resp, err = h.responder.Execute(ctx, assistant.Query{
			Kind:      assistant.QueryKind(req.Kind),
			SiteID:    req.SiteID,
			SiteIDs:   req.SiteIDs,
			Limit:     req.Limit,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		})
	}
	if err != nil {
		if isQueryValidationError(err) {
			h.writeError(c, http.StatusBadRequest, "InvalidQuery", err.Error())
			return
		}
		h.requestLog(c).Error("diagnostic query failed", "error", err)
		h.writeError(c, http.StatusInternalServerError, "QueryFailed", "diagnostic query failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// isQueryValidationError reports whether the failure is the caller's
// fault rather than a backend outage.
func isQueryValidationError(err error) bool {
	return errors.Is(err, assistant.ErrUnknownKind) ||
		errors.Is(err, assistant.ErrMissingSite) ||
		errors.Is(err, assistant.ErrInvalidEntity)
}
