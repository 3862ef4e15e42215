// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import "math"

// FilterValid returns the subsequence of samples that are usable for
// metric computation: availability exactly 1.0 and both power fields
// finite and non-negative. Relative order is preserved.
//
// Invalid samples are dropped, never zero-filled; zero-filling a gap
// would bias RMSE and R² toward the origin. Non-finite values (NaN,
// ±Inf) count as invalid rather than being an error, since they show
// up routinely in raw warehouse exports.
func FilterValid(samples []Sample) []Sample {
	valid := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Availability != 1.0 {
			continue
		}
		if !isUsablePower(s.ActualPower) || !isUsablePower(s.ExpectedPower) {
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

func isUsablePower(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
