// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire contracts of the dashboard API.
//
// Request types carry their own Validate method backed by
// go-playground/validator so handlers reject malformed input before any
// telemetry query runs.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxQuestionBytes caps free-text diagnostic questions. Checked in
// bytes, not runes, so oversized payloads are rejected cheaply.
const MaxQuestionBytes = 4 * 1024

// apiValidate is the shared validator instance for API datatypes.
var apiValidate *validator.Validate

func init() {
	apiValidate = validator.New()
}

// ErrorResponse is the uniform error body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SiteSummary is one roster entry in the fleet listing.
type SiteSummary struct {
	SiteID     string  `json:"site_id"`
	SiteName   string  `json:"site_name"`
	CapacityMW float64 `json:"capacity_mw"`
}

// SitesResponse lists the fleet roster.
type SitesResponse struct {
	Sites      []SiteSummary `json:"sites"`
	TotalCount int           `json:"total_count"`
}

// DataPoint is one valid telemetry reading on the wire. Power values
// are kilowatts; the unit lives in the docs, not the key names.
type DataPoint struct {
	Timestamp            string  `json:"timestamp"`
	POAIrradiance        float64 `json:"poa_irradiance"`
	ActualPower          float64 `json:"actual_power"`
	ExpectedPower        float64 `json:"expected_power"`
	InverterAvailability float64 `json:"inverter_availability"`
}

// PerformanceSummary is the aggregate block of a performance response.
type PerformanceSummary struct {
	DataPointCount         int     `json:"data_point_count"`
	FirstReading           string  `json:"first_reading,omitempty"`
	LastReading            string  `json:"last_reading,omitempty"`
	AvgActualPower         float64 `json:"avg_actual_power"`
	AvgExpectedPower       float64 `json:"avg_expected_power"`
	AvgPOAIrradiance       float64 `json:"avg_poa_irradiance"`
	TotalActualEnergyKWh   float64 `json:"total_actual_energy_kwh"`
	TotalExpectedEnergyKWh float64 `json:"total_expected_energy_kwh"`
	PerformanceRatio       float64 `json:"performance_ratio"`
	DeviationPercentage    float64 `json:"deviation_percentage"`
	RevenueImpactUSD       float64 `json:"revenue_impact_usd"`
	AlertLevel             string  `json:"alert_level"`
}

// PerformanceResponse answers GET /api/sites/:siteID/performance.
// RMSE and R² are duplicated at the top level because dashboard tiles
// read them without unpacking the summary.
type PerformanceResponse struct {
	SiteID       string             `json:"site_id"`
	SiteName     string             `json:"site_name"`
	DataPoints   []DataPoint        `json:"data_points"`
	Summary      PerformanceSummary `json:"summary"`
	RMSE         float64            `json:"rmse"`
	RSquared     float64            `json:"r_squared"`
	DataFallback bool               `json:"data_fallback"`
	DataMonth    string             `json:"data_month"`
}

// SkidPerformance is one row of the skid leaderboard.
type SkidPerformance struct {
	SkidID              string  `json:"skid_id"`
	SkidName            string  `json:"skid_name"`
	AvgActualPower      float64 `json:"avg_actual_power"`
	AvgExpectedPower    float64 `json:"avg_expected_power"`
	DeviationPercentage float64 `json:"deviation_percentage"`
	AlertLevel          string  `json:"alert_level"`
	DataPointCount      int     `json:"data_point_count"`
}

// SkidsResponse answers GET /api/sites/:siteID/skids, worst skid first.
type SkidsResponse struct {
	SiteID     string            `json:"site_id"`
	Skids      []SkidPerformance `json:"skids"`
	TotalCount int               `json:"total_count"`
	DataMonth  string            `json:"data_month"`
}

// InverterPerformance is one row of the inverter listing. Availability
// is the share of raw readings that passed the quality filter.
type InverterPerformance struct {
	InverterID          string  `json:"inverter_id"`
	AvgActualPower      float64 `json:"avg_actual_power"`
	AvgExpectedPower    float64 `json:"avg_expected_power"`
	DeviationPercentage float64 `json:"deviation_percentage"`
	Availability        float64 `json:"availability"`
	DataPointCount      int     `json:"data_point_count"`
}

// InvertersResponse answers GET /api/skids/:skidID/inverters.
type InvertersResponse struct {
	SkidID     string                `json:"skid_id"`
	Inverters  []InverterPerformance `json:"inverters"`
	TotalCount int                   `json:"total_count"`
	DataMonth  string                `json:"data_month"`
}

// QueryRequest is the POST /api/query body. Either Question (free
// text, routed through the LLM classifier) or Kind (structured query,
// no LLM involved) must be set.
type QueryRequest struct {
	Question string `json:"question,omitempty"`

	Kind      string   `json:"kind,omitempty" validate:"omitempty,oneof=metrics worst_performers power_curve comparison"`
	SiteID    string   `json:"site_id,omitempty"`
	SiteIDs   []string `json:"site_ids,omitempty" validate:"omitempty,max=10"`
	Limit     int      `json:"limit,omitempty" validate:"gte=0"`
	StartDate string   `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string   `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Validate checks structural constraints. Semantic constraints (site
// exists, window order) are the executor's job.
func (r *QueryRequest) Validate() error {
	if r.Question == "" && r.Kind == "" {
		return fmt.Errorf("either question or kind must be provided")
	}
	if r.Question != "" && r.Kind != "" {
		return fmt.Errorf("question and kind are mutually exclusive")
	}
	if len(r.Question) > MaxQuestionBytes {
		return fmt.Errorf("question exceeds %d bytes", MaxQuestionBytes)
	}
	if r.Kind == "comparison" && len(r.SiteIDs) < 2 {
		return fmt.Errorf("comparison requires at least two site IDs")
	}
	if err := apiValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid query request: %w", err)
	}
	return nil
}
