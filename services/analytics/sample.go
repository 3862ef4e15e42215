// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analytics implements the performance-deviation engine for the
// solar fleet: sample validation, aggregation, fit-quality metrics
// (RMSE, R²), revenue impact, alert classification, and ranking.
//
// Every function in this package is a pure transform over the sample
// sequences it receives. The package performs no I/O, holds no state
// across calls, and is safe for concurrent use from parallel request
// handlers.
package analytics

import "time"

// Sample is one telemetry reading for one entity (site, skid, or
// inverter) at one timestamp. Power values are in kW, irradiance in
// W/m², availability in [0, 1].
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	EntityID      string    `json:"entity_id"`
	POAIrradiance float64   `json:"poa_irradiance"`
	ActualPower   float64   `json:"actual_power"`
	ExpectedPower float64   `json:"expected_power"`
	Availability  float64   `json:"inverter_availability"`
}

// AggregatedPoint is one (entity × time-bucket) rollup of one or more
// valid samples. A point is only ever produced for groups with at
// least one contributing sample, so SampleCount is always > 0.
type AggregatedPoint struct {
	EntityID         string  `json:"entity_id"`
	BucketKey        string  `json:"bucket_key"`
	SampleCount      int     `json:"sample_count"`
	SumActualPower   float64 `json:"sum_actual_power"`
	SumExpectedPower float64 `json:"sum_expected_power"`
	SumIrradiance    float64 `json:"sum_irradiance"`
}

// AvgActualPower returns the mean actual power for the bucket.
func (p AggregatedPoint) AvgActualPower() float64 {
	return p.SumActualPower / float64(p.SampleCount)
}

// AvgExpectedPower returns the mean expected power for the bucket.
func (p AggregatedPoint) AvgExpectedPower() float64 {
	return p.SumExpectedPower / float64(p.SampleCount)
}

// AvgIrradiance returns the mean POA irradiance for the bucket.
func (p AggregatedPoint) AvgIrradiance() float64 {
	return p.SumIrradiance / float64(p.SampleCount)
}
