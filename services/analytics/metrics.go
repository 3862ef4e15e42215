// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"errors"
	"math"
	"strings"
)

// OperationalHoursPerMonth approximates average monthly operating hours
// and converts an RMSE in MW into MWh of mispredicted energy.
const OperationalHoursPerMonth = 720.0

// DefaultPPARate is the portfolio-wide PPA price in currency per MWh,
// used when an entity has no configured override.
const DefaultPPARate = 50.0

// zeroVarianceRSquared is the R² reported whenever SS_tot is zero
// (empty, singleton, or constant actual series). A perfectly matched
// degenerate series could arguably report 1 instead; the flat 0 keeps
// the behavior the fleet dashboards were calibrated against.
const zeroVarianceRSquared = 0.0

// KilowattsPerMegawatt converts the warehouse's kW power readings to
// the MW scale the alert thresholds and PPA rates are defined on.
const KilowattsPerMegawatt = 1000.0

// ErrMismatchedSeries is returned when the two-array call shape is
// given actual and expected series of different lengths.
var ErrMismatchedSeries = errors.New("analytics: actual and expected series have different lengths")

// AlertLevel classifies an entity's model-fit quality. Levels are
// ordered from healthy to failing.
type AlertLevel int

const (
	AlertGood AlertLevel = iota
	AlertMonitor
	AlertWarning
	AlertCritical
)

// String returns the wire name of the level.
func (l AlertLevel) String() string {
	switch l {
	case AlertGood:
		return "GOOD"
	case AlertMonitor:
		return "MONITOR"
	case AlertWarning:
		return "WARNING"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the level as its wire name.
func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// PPAConfig resolves Power Purchase Agreement rates per entity, with a
// portfolio default. Pass it explicitly into metric computation; the
// engine keeps no ambient financial state.
type PPAConfig struct {
	// DefaultRate is used when an entity has no override. Zero means
	// "use DefaultPPARate".
	DefaultRate float64

	// Rates maps lowercase entity IDs to their contracted rate.
	Rates map[string]float64
}

// RateFor returns the PPA rate for an entity, falling back to the
// configured default and then to DefaultPPARate.
func (c PPAConfig) RateFor(entityID string) float64 {
	if r, ok := c.Rates[strings.ToLower(entityID)]; ok {
		return r
	}
	if c.DefaultRate > 0 {
		return c.DefaultRate
	}
	return DefaultPPARate
}

// PerformanceMetrics holds the derived statistics for one entity over
// one evaluation window. It is recomputed on every query and never
// persisted. RMSE carries the unit of the inputs it was computed from;
// the alert thresholds and revenue math assume the conventional MW.
type PerformanceMetrics struct {
	RMSE                float64    `json:"rmse"`
	RSquared            float64    `json:"r_squared"`
	DeviationPercentage float64    `json:"deviation_percentage"`
	RevenueImpact       float64    `json:"revenue_impact"`
	AlertLevel          AlertLevel `json:"alert_level"`
}

// ComputeMetricsFromSamples derives metrics from raw valid samples.
// Empty input resolves to the documented sentinels (all zeros, GOOD).
func ComputeMetricsFromSamples(samples []Sample, ppa PPAConfig, entityID string) PerformanceMetrics {
	actual := make([]float64, len(samples))
	expected := make([]float64, len(samples))
	for i, s := range samples {
		actual[i] = s.ActualPower
		expected[i] = s.ExpectedPower
	}
	return computeMetrics(actual, expected, ppa, entityID)
}

// ComputeMetricsFromPoints derives metrics from pre-aggregated points,
// pairing each bucket's average actual and expected power.
func ComputeMetricsFromPoints(points []AggregatedPoint, ppa PPAConfig, entityID string) PerformanceMetrics {
	actual := make([]float64, len(points))
	expected := make([]float64, len(points))
	for i, p := range points {
		actual[i] = p.AvgActualPower()
		expected[i] = p.AvgExpectedPower()
	}
	return computeMetrics(actual, expected, ppa, entityID)
}

// ComputeMetricsFromSeries derives metrics from two parallel arrays of
// actual and expected values. Mismatched lengths are a caller bug and
// fail fast rather than silently truncating.
func ComputeMetricsFromSeries(actual, expected []float64, ppa PPAConfig, entityID string) (PerformanceMetrics, error) {
	if len(actual) != len(expected) {
		return PerformanceMetrics{}, ErrMismatchedSeries
	}
	return computeMetrics(actual, expected, ppa, entityID), nil
}

// computeMetrics is the single implementation behind the three call
// shapes. Lengths are already equal here.
func computeMetrics(actual, expected []float64, ppa PPAConfig, entityID string) PerformanceMetrics {
	rmse, r2 := fitQuality(actual, expected)
	m := PerformanceMetrics{
		RMSE:                rmse,
		RSquared:            r2,
		DeviationPercentage: deviationPercentage(actual, expected),
	}
	m.RevenueImpact = RevenueImpact(rmse, ppa.RateFor(entityID))
	m.AlertLevel = ClassifyAlert(r2, rmse)
	return m
}

// fitQuality computes RMSE and R² for a paired series.
//
// R² is 1 − SS_res/SS_tot; when SS_tot is zero the division is
// undefined and the zero-variance policy applies.
func fitQuality(actual, expected []float64) (rmse, rSquared float64) {
	n := len(actual)
	if n == 0 {
		return 0, zeroVarianceRSquared
	}

	var sumSq, sumActual float64
	for i := range actual {
		d := actual[i] - expected[i]
		sumSq += d * d
		sumActual += actual[i]
	}
	rmse = math.Sqrt(sumSq / float64(n))

	mean := sumActual / float64(n)
	var ssTot float64
	for _, a := range actual {
		d := a - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return rmse, zeroVarianceRSquared
	}
	return rmse, 1 - sumSq/ssTot
}

// deviationPercentage is the signed percent difference of the mean
// actual from the mean expected. A zero mean expected reports 0, the
// same safe-division the warehouse rollups use.
func deviationPercentage(actual, expected []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sumActual, sumExpected float64
	for i := range actual {
		sumActual += actual[i]
		sumExpected += expected[i]
	}
	avgActual := sumActual / float64(len(actual))
	avgExpected := sumExpected / float64(len(expected))
	if avgExpected == 0 {
		return 0
	}
	return (avgActual - avgExpected) / avgExpected * 100
}

// RevenueImpact converts an RMSE in MW into a monthly currency amount
// at the given PPA rate, rounded to cents.
func RevenueImpact(rmseMW, ppaRate float64) float64 {
	return math.Round(rmseMW*OperationalHoursPerMonth*ppaRate*100) / 100
}

// ClassifyAlert maps an (R², RMSE) pair to its alert level. R² is the
// primary signal and RMSE the secondary; either condition alone is
// enough to elevate severity. All comparisons are strict, so exact
// threshold values classify at the less severe level.
func ClassifyAlert(rSquared, rmse float64) AlertLevel {
	switch {
	case rSquared < 0.70 || rmse > 3.0:
		return AlertCritical
	case rSquared < 0.80 || rmse > 2.0:
		return AlertWarning
	case rSquared < 0.90 || rmse > 1.5:
		return AlertMonitor
	default:
		return AlertGood
	}
}
