// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"errors"
	"fmt"
	"sort"
)

// RankMetric names the metric a leaderboard is ordered by.
type RankMetric string

const (
	RankByRSquared  RankMetric = "r_squared"
	RankByRMSE      RankMetric = "rmse"
	RankByDeviation RankMetric = "deviation_percentage"
	RankByRevenue   RankMetric = "revenue_impact"
)

// RankOrder is the sort direction for a leaderboard.
type RankOrder int

const (
	// Ascending puts the smallest metric first (worst fit first when
	// ranking by R²).
	Ascending RankOrder = iota

	// Descending puts the largest metric first.
	Descending
)

var (
	// ErrNegativeLimit is returned for a negative rank limit.
	ErrNegativeLimit = errors.New("analytics: rank limit must not be negative")

	// ErrUnknownMetric is returned for a metric name Rank does not know.
	ErrUnknownMetric = errors.New("analytics: unknown rank metric")
)

// RankedEntity pairs an entity with its computed metrics and rollup
// figures for leaderboard views.
type RankedEntity struct {
	EntityID         string             `json:"entity_id"`
	EntityName       string             `json:"entity_name"`
	AvgActualPower   float64            `json:"avg_actual_power"`
	AvgExpectedPower float64            `json:"avg_expected_power"`
	DataPointCount   int                `json:"data_point_count"`
	Metrics          PerformanceMetrics `json:"metrics"`
}

// Rank orders entities by the chosen metric and truncates to limit.
//
// The sort is stable: ties keep their input order. A limit of 0, or a
// limit at or beyond the input length, returns the full ranked
// sequence. The input slice is not modified.
func Rank(entities []RankedEntity, by RankMetric, order RankOrder, limit int) ([]RankedEntity, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLimit, limit)
	}
	key, err := metricKey(by)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedEntity, len(entities))
	copy(ranked, entities)

	sort.SliceStable(ranked, func(i, j int) bool {
		if order == Descending {
			return key(ranked[i]) > key(ranked[j])
		}
		return key(ranked[i]) < key(ranked[j])
	})

	if limit == 0 || limit >= len(ranked) {
		return ranked, nil
	}
	return ranked[:limit], nil
}

func metricKey(by RankMetric) (func(RankedEntity) float64, error) {
	switch by {
	case RankByRSquared:
		return func(e RankedEntity) float64 { return e.Metrics.RSquared }, nil
	case RankByRMSE:
		return func(e RankedEntity) float64 { return e.Metrics.RMSE }, nil
	case RankByDeviation:
		return func(e RankedEntity) float64 { return e.Metrics.DeviationPercentage }, nil
	case RankByRevenue:
		return func(e RankedEntity) float64 { return e.Metrics.RevenueImpact }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, by)
	}
}
