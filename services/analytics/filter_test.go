// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(hour int, actual, expected, avail float64) Sample {
	return Sample{
		Timestamp:     time.Date(2026, 7, 1, hour, 0, 0, 0, time.UTC),
		EntityID:      "SITE001",
		POAIrradiance: 500,
		ActualPower:   actual,
		ExpectedPower: expected,
		Availability:  avail,
	}
}

func TestFilterValid_EmptyInput(t *testing.T) {
	out := FilterValid(nil)
	assert.Empty(t, out)

	out = FilterValid([]Sample{})
	assert.Empty(t, out)
}

func TestFilterValid_DropRules(t *testing.T) {
	tests := []struct {
		name   string
		sample Sample
		kept   bool
	}{
		{"fully available", sampleAt(10, 100, 110, 1.0), true},
		{"partial availability", sampleAt(10, 100, 110, 0.95), false},
		{"zero availability", sampleAt(10, 100, 110, 0), false},
		{"night zeros are valid", sampleAt(2, 0, 0, 1.0), true},
		{"negative actual", sampleAt(10, -5, 110, 1.0), false},
		{"negative expected", sampleAt(10, 100, -1, 1.0), false},
		{"NaN actual", sampleAt(10, math.NaN(), 110, 1.0), false},
		{"NaN expected", sampleAt(10, 100, math.NaN(), 1.0), false},
		{"positive infinity", sampleAt(10, math.Inf(1), 110, 1.0), false},
		{"negative infinity", sampleAt(10, 100, math.Inf(-1), 1.0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterValid([]Sample{tt.sample})
			if tt.kept {
				assert.Len(t, out, 1)
			} else {
				assert.Empty(t, out)
			}
		})
	}
}

func TestFilterValid_PreservesOrder(t *testing.T) {
	in := []Sample{
		sampleAt(8, 80, 85, 1.0),
		sampleAt(9, 90, 95, 0.5), // dropped
		sampleAt(10, 100, 105, 1.0),
		sampleAt(11, math.NaN(), 115, 1.0), // dropped
		sampleAt(12, 120, 125, 1.0),
	}

	out := FilterValid(in)
	require.Len(t, out, 3)

	// Output is a subsequence of the input in the original order.
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[2], out[1])
	assert.Equal(t, in[4], out[2])
	for _, s := range out {
		assert.Equal(t, 1.0, s.Availability)
		assert.GreaterOrEqual(t, s.ActualPower, 0.0)
		assert.GreaterOrEqual(t, s.ExpectedPower, 0.0)
	}
}

func TestFilterValid_DoesNotMutateInput(t *testing.T) {
	in := []Sample{sampleAt(10, 100, 105, 0.9), sampleAt(11, 110, 115, 1.0)}
	_ = FilterValid(in)
	assert.Equal(t, 0.9, in[0].Availability)
	assert.Equal(t, 1.0, in[1].Availability)
}
