// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package warehouse provides access to fleet telemetry stored in InfluxDB,
// plus the service configuration and PPA rate tables the analytics engine
// consumes.
//
// Telemetry is written by the SCADA ingest pipeline under a single
// measurement with one row per inverter per interval:
//
//	measurement: pv_telemetry
//	tags:        site_id, skid_id, inverter_id
//	fields:      actual_power_kw, expected_power_kw,
//	             poa_irradiance, inverter_availability
//
// Queries pivot fields into columns so each Flux record maps directly to
// one analytics.Sample.
package warehouse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/pkg/validation"
	"github.com/heliosgrid/solarperf/services/analytics"
)

const telemetryMeasurement = "pv_telemetry"

// Telemetry tag and field keys as written by the ingest pipeline.
const (
	tagSite     = "site_id"
	tagSkid     = "skid_id"
	tagInverter = "inverter_id"

	fieldActualPower   = "actual_power_kw"
	fieldExpectedPower = "expected_power_kw"
	fieldIrradiance    = "poa_irradiance"
	fieldAvailability  = "inverter_availability"
)

// Store reads telemetry samples from InfluxDB.
type Store struct {
	queryAPI api.QueryAPI
	bucket   string
	log      *logging.Logger
}

// NewStore creates a Store over the given query API and bucket.
func NewStore(queryAPI api.QueryAPI, bucket string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Default()
	}
	return &Store{
		queryAPI: queryAPI,
		bucket:   bucket,
		log:      log,
	}
}

// SiteSamples returns all inverter samples for a site in the window,
// tagged with the site ID as the entity. Site-level powers are summed
// downstream by aggregation, not here; each row stays one inverter
// reading so the quality filter sees raw availability.
func (s *Store) SiteSamples(ctx context.Context, siteID string, w Window) ([]analytics.Sample, error) {
	return s.samples(ctx, tagSite, siteID, tagSite, w)
}

// SkidSamples returns samples for all skids of a site, tagged with the
// skid ID as the entity so callers can group per skid.
func (s *Store) SkidSamples(ctx context.Context, siteID string, w Window) ([]analytics.Sample, error) {
	return s.samples(ctx, tagSite, siteID, tagSkid, w)
}

// InverterSamples returns samples for all inverters of a skid, tagged
// with the inverter ID as the entity.
func (s *Store) InverterSamples(ctx context.Context, skidID string, w Window) ([]analytics.Sample, error) {
	return s.samples(ctx, tagSkid, skidID, tagInverter, w)
}

// samples runs one pivoted Flux query filtered on filterTag==filterValue
// and converts the records to Samples keyed by entityTag.
func (s *Store) samples(ctx context.Context, filterTag, filterValue, entityTag string, w Window) ([]analytics.Sample, error) {
	if err := validation.ValidateEntityID(filterValue); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filterTag, err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	flux := buildSampleQuery(s.bucket, filterTag, filterValue, w)

	start := time.Now()
	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("telemetry query for %s=%s failed: %w", filterTag, filterValue, err)
	}
	// Guard against nil result (can happen with empty query results)
	if result == nil {
		s.log.Warn("telemetry query returned nil result", filterTag, filterValue)
		return nil, nil
	}

	var samples []analytics.Sample
	for result.Next() {
		samples = append(samples, recordToSample(result.Record(), entityTag))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("telemetry result iteration for %s=%s failed: %w", filterTag, filterValue, result.Err())
	}

	s.log.Debug("telemetry query complete",
		filterTag, filterValue,
		"entity_tag", entityTag,
		"samples", len(samples),
		"duration_ms", time.Since(start).Milliseconds())

	return samples, nil
}

// buildSampleQuery renders the pivoted Flux query for one entity filter.
// filterTag is always one of the fixed tag constants and filterValue has
// passed ValidateEntityID, so interpolation is safe.
func buildSampleQuery(bucket, filterTag, filterValue string, w Window) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  |> filter(fn: (r) => r.%s == "%s")
		  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"], desc: false)
	`, bucket, w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339),
		telemetryMeasurement, filterTag, filterValue)
}

// recordToSample converts one pivoted Flux record to a Sample. Missing
// fields become NaN so the quality filter drops the row rather than
// treating absence as zero output.
func recordToSample(record *query.FluxRecord, entityTag string) analytics.Sample {
	sample := analytics.Sample{
		Timestamp:     record.Time(),
		POAIrradiance: math.NaN(),
		ActualPower:   math.NaN(),
		ExpectedPower: math.NaN(),
		Availability:  math.NaN(),
	}

	if id, ok := record.ValueByKey(entityTag).(string); ok {
		sample.EntityID = id
	}
	if v, ok := record.ValueByKey(fieldActualPower).(float64); ok {
		sample.ActualPower = v
	}
	if v, ok := record.ValueByKey(fieldExpectedPower).(float64); ok {
		sample.ExpectedPower = v
	}
	if v, ok := record.ValueByKey(fieldIrradiance).(float64); ok {
		sample.POAIrradiance = v
	}
	if v, ok := record.ValueByKey(fieldAvailability).(float64); ok {
		sample.Availability = v
	}

	return sample
}
