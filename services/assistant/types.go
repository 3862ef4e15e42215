// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant answers diagnostic questions about fleet
// performance. Questions arrive either as structured queries or as
// free text; free text is mapped to a structured query by an LLM-backed
// intent classifier, and execution always runs through the analytics
// engine, never through the model.
package assistant

import (
	"errors"
	"fmt"

	"github.com/heliosgrid/solarperf/pkg/validation"
	"github.com/heliosgrid/solarperf/services/analytics"
)

// QueryKind selects one of the canned analytical queries.
type QueryKind string

const (
	// KindMetrics reports performance metrics for one site.
	KindMetrics QueryKind = "metrics"

	// KindWorstPerformers ranks fleet sites worst-first.
	KindWorstPerformers QueryKind = "worst_performers"

	// KindPowerCurve returns the actual-vs-expected power series for
	// one site.
	KindPowerCurve QueryKind = "power_curve"

	// KindComparison puts two or more sites side by side.
	KindComparison QueryKind = "comparison"
)

// ErrUnknownKind is returned for a query kind outside the canned set.
var ErrUnknownKind = errors.New("unknown query kind")

// ErrMissingSite is returned when a query kind requires a site ID and
// none was given.
var ErrMissingSite = errors.New("query requires a site ID")

// ErrInvalidEntity is returned when a query names an entity ID that
// fails format validation. Classifier output counts as untrusted
// input, so IDs are checked here before any Flux query is built.
var ErrInvalidEntity = errors.New("invalid entity ID in query")

// Query is a structured diagnostic request.
type Query struct {
	Kind QueryKind `json:"kind"`

	// SiteID is required for metrics and power_curve.
	SiteID string `json:"site_id,omitempty"`

	// SiteIDs is required for comparison (two or more).
	SiteIDs []string `json:"site_ids,omitempty"`

	// Limit caps worst_performers output. Zero means all.
	Limit int `json:"limit,omitempty"`

	// StartDate/EndDate are inclusive "YYYY-MM-DD" bounds. Both empty
	// selects the current month to date.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Validate checks the query is executable.
func (q Query) Validate() error {
	switch q.Kind {
	case KindMetrics, KindPowerCurve:
		if q.SiteID == "" {
			return ErrMissingSite
		}
		if err := validation.ValidateEntityID(q.SiteID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
		}
	case KindWorstPerformers:
		if q.Limit < 0 {
			return fmt.Errorf("limit must not be negative: %d", q.Limit)
		}
	case KindComparison:
		if len(q.SiteIDs) < 2 {
			return fmt.Errorf("comparison requires at least two site IDs, got %d", len(q.SiteIDs))
		}
		if err := validation.ValidateEntityIDs(q.SiteIDs); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, q.Kind)
	}
	return nil
}

// Response is the assistant's answer: a text summary plus tabular data
// the dashboard can chart.
type Response struct {
	Summary   string     `json:"summary"`
	Data      [][]any    `json:"data"`
	Columns   []string   `json:"columns"`
	ChartType string     `json:"chart_type"`
	Query     Query      `json:"query"`
	DataMonth string     `json:"data_month,omitempty"`
	Fallback  bool       `json:"data_fallback"`
}

// siteResult pairs a site with its report for ranking and comparison.
type siteResult struct {
	SiteID   string
	SiteName string
	Report   analytics.Report
}
