// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"fmt"
	"time"
)

// Summary is the rollup block of a Report. Power averages are in kW,
// energy totals in kWh (the warehouse samples on an hourly cadence, so
// one kW reading contributes one kWh), RMSE inside Metrics in MW.
type Summary struct {
	PointCount          int                `json:"data_point_count"`
	FirstReading        time.Time          `json:"first_reading"`
	LastReading         time.Time          `json:"last_reading"`
	AvgActualPower      float64            `json:"avg_actual_power"`
	AvgExpectedPower    float64            `json:"avg_expected_power"`
	AvgPOAIrradiance    float64            `json:"avg_poa_irradiance"`
	TotalActualEnergy   float64            `json:"total_actual_energy"`
	TotalExpectedEnergy float64            `json:"total_expected_energy"`
	PerformanceRatio    float64            `json:"performance_ratio"`
	Metrics             PerformanceMetrics `json:"metrics"`
}

// Report is the engine's response object for one entity and one
// evaluation window: the validated point series for charting plus the
// summary block. When the window produced no usable points the report
// carries a fallback signal instead of fabricated zeros, so callers
// can retry with a fallback window.
type Report struct {
	EntityID       string   `json:"entity_id"`
	Points         []Sample `json:"points"`
	Summary        Summary  `json:"summary"`
	NeedsFallback  bool     `json:"needs_fallback"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

// BuildReport filters the sample series, aggregates it, and derives
// the summary statistics and fit metrics for one entity.
//
// "Zero valid points" is observable via NeedsFallback and is distinct
// from a series of present-but-zero-valued samples, which produces a
// normal report with zero averages.
func BuildReport(entityID string, samples []Sample, ppa PPAConfig) Report {
	points := FilterValid(samples)

	if len(points) == 0 {
		reason := "no samples in window"
		if len(samples) > 0 {
			reason = fmt.Sprintf("no valid samples in window (%d dropped by quality filter)", len(samples))
		}
		return Report{
			EntityID:       entityID,
			Points:         points,
			NeedsFallback:  true,
			FallbackReason: reason,
		}
	}

	var sumActual, sumExpected, sumIrradiance float64
	first, last := points[0].Timestamp, points[0].Timestamp
	for _, p := range points {
		sumActual += p.ActualPower
		sumExpected += p.ExpectedPower
		sumIrradiance += p.POAIrradiance
		if p.Timestamp.Before(first) {
			first = p.Timestamp
		}
		if p.Timestamp.After(last) {
			last = p.Timestamp
		}
	}

	n := float64(len(points))
	summary := Summary{
		PointCount:          len(points),
		FirstReading:        first,
		LastReading:         last,
		AvgActualPower:      sumActual / n,
		AvgExpectedPower:    sumExpected / n,
		AvgPOAIrradiance:    sumIrradiance / n,
		TotalActualEnergy:   sumActual,
		TotalExpectedEnergy: sumExpected,
	}
	if sumExpected > 0 {
		summary.PerformanceRatio = sumActual / sumExpected
	}

	// Metrics run on the MW scale the thresholds and PPA rates use.
	actualMW := make([]float64, len(points))
	expectedMW := make([]float64, len(points))
	for i, p := range points {
		actualMW[i] = p.ActualPower / KilowattsPerMegawatt
		expectedMW[i] = p.ExpectedPower / KilowattsPerMegawatt
	}
	summary.Metrics = computeMetrics(actualMW, expectedMW, ppa, entityID)

	return Report{
		EntityID: entityID,
		Points:   points,
		Summary:  summary,
	}
}
