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
)

// GroupBy selects the grouping key for Aggregate.
type GroupBy int

const (
	// GroupByEntity groups samples by entity ID across the whole window.
	GroupByEntity GroupBy = iota

	// GroupByDay groups samples by calendar day (UTC), ignoring entity.
	GroupByDay

	// GroupByEntityDay groups samples by (entity ID, calendar day).
	GroupByEntityDay
)

// ErrUnknownGroupBy is returned for a GroupBy value outside the
// declared constants. This is a caller bug, not a data condition.
var ErrUnknownGroupBy = errors.New("analytics: unknown group-by key")

// allBucket is the bucket key used when time is not part of the group key.
const allBucket = "all"

// dayLayout formats a sample timestamp into its daily bucket key.
const dayLayout = "2006-01-02"

// Aggregate rolls valid samples up into per-group sums.
//
// Groups appear in the output in order of first occurrence of their
// key, and sums accumulate in input order, so the result is
// bit-reproducible for an identical input sequence. Groups with no
// contributing samples are never emitted.
func Aggregate(samples []Sample, by GroupBy) ([]AggregatedPoint, error) {
	if by != GroupByEntity && by != GroupByDay && by != GroupByEntityDay {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroupBy, by)
	}

	points := make([]AggregatedPoint, 0)
	index := make(map[string]int)

	for _, s := range samples {
		entity, bucket := groupKey(s, by)
		key := entity + "\x00" + bucket

		i, seen := index[key]
		if !seen {
			i = len(points)
			index[key] = i
			points = append(points, AggregatedPoint{
				EntityID:  entity,
				BucketKey: bucket,
			})
		}

		points[i].SampleCount++
		points[i].SumActualPower += s.ActualPower
		points[i].SumExpectedPower += s.ExpectedPower
		points[i].SumIrradiance += s.POAIrradiance
	}

	return points, nil
}

func groupKey(s Sample, by GroupBy) (entity, bucket string) {
	switch by {
	case GroupByEntity:
		return s.EntityID, allBucket
	case GroupByDay:
		return "", s.Timestamp.UTC().Format(dayLayout)
	default: // GroupByEntityDay, validated by Aggregate
		return s.EntityID, s.Timestamp.UTC().Format(dayLayout)
	}
}
