// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/services/analytics"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

var (
	reportSite  string
	reportStart string
	reportEnd   string
	reportJSON  bool
	reportDaily bool

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print a one-shot performance report for a site",
		Long: `Fetches the site's telemetry for the requested window (the current
month when no dates are given), runs the performance analysis, and
prints the result. Falls back to the previous calendar month when the
requested window holds no valid telemetry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context())
		},
	}
)

func init() {
	reportCmd.Flags().StringVar(&reportSite, "site", "", "site ID to report on (required)")
	reportCmd.Flags().StringVar(&reportStart, "start", "", "window start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "window end date (YYYY-MM-DD, inclusive)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit the full report as JSON")
	reportCmd.Flags().BoolVar(&reportDaily, "daily", false, "append a per-day rollup to the report")
	_ = reportCmd.MarkFlagRequired("site")
}

func runReport(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// CLI runs keep stderr quiet unless something breaks.
	log := logging.New(logging.Config{Level: logging.LevelWarn, Service: "solarperf-cli"})
	defer log.Close()

	window, err := warehouse.ParseWindow(reportStart, reportEnd, time.Now())
	if err != nil {
		return err
	}

	influxClient := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer influxClient.Close()

	store := warehouse.NewStore(influxClient.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, log)

	rates, err := warehouse.LoadRates(cfg.RatesFile, log)
	if err != nil {
		return fmt.Errorf("load PPA rates: %w", err)
	}
	defer rates.Stop()

	samples, err := store.SiteSamples(ctx, reportSite, window)
	if err != nil {
		return fmt.Errorf("fetch telemetry: %w", err)
	}

	served := window
	report := analytics.BuildReport(reportSite, samples, rates.Snapshot())
	if report.NeedsFallback {
		prev := window.PreviousMonth()
		prevSamples, err := store.SiteSamples(ctx, reportSite, prev)
		if err != nil {
			return fmt.Errorf("fetch fallback telemetry: %w", err)
		}
		fallback := analytics.BuildReport(reportSite, prevSamples, rates.Snapshot())
		if !fallback.NeedsFallback {
			served = prev
			report = fallback
		}
	}

	if report.NeedsFallback {
		return fmt.Errorf("no telemetry for %s in %s or the month before it: %s",
			reportSite, window.Month(), report.FallbackReason)
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(cfg.SiteName(reportSite), served, report)
	if reportDaily {
		return printDailyRollup(report, rates.Snapshot())
	}
	return nil
}

// printDailyRollup appends a per-day breakdown: one row per calendar
// day plus the fit metrics recomputed at daily resolution, which
// smooths out intra-day cloud transients.
func printDailyRollup(report analytics.Report, ppa analytics.PPAConfig) error {
	days, err := analytics.Aggregate(report.Points, analytics.GroupByDay)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-12s %8s %16s %18s %10s\n",
		"Day", "Samples", "Avg actual (kW)", "Avg expected (kW)", "Deviation")

	actualMW := make([]float64, len(days))
	expectedMW := make([]float64, len(days))
	for i, d := range days {
		dev := analytics.ComputeMetricsFromPoints(days[i:i+1], ppa, report.EntityID)
		fmt.Printf("%-12s %8d %16.1f %18.1f %+9.2f%%\n",
			d.BucketKey, d.SampleCount, d.AvgActualPower(), d.AvgExpectedPower(),
			dev.DeviationPercentage)
		actualMW[i] = d.AvgActualPower() / analytics.KilowattsPerMegawatt
		expectedMW[i] = d.AvgExpectedPower() / analytics.KilowattsPerMegawatt
	}

	m, err := analytics.ComputeMetricsFromSeries(actualMW, expectedMW, ppa, report.EntityID)
	if err != nil {
		return err
	}
	fmt.Printf("Daily-resolution fit: RMSE %.3f MW, R² %.3f\n", m.RMSE, m.RSquared)
	return nil
}

func printReport(siteName string, served warehouse.Window, report analytics.Report) {
	s := report.Summary
	m := s.Metrics

	fmt.Printf("Performance report: %s (%s)\n", siteName, report.EntityID)
	fmt.Printf("Window:             %s\n", served.Month())
	fmt.Printf("Data points:        %d\n", s.PointCount)
	fmt.Printf("Avg actual power:   %.1f kW\n", s.AvgActualPower)
	fmt.Printf("Avg expected power: %.1f kW\n", s.AvgExpectedPower)
	fmt.Printf("Performance ratio:  %.3f\n", s.PerformanceRatio)
	fmt.Printf("Deviation:          %+.2f%%\n", m.DeviationPercentage)
	fmt.Printf("RMSE:               %.3f MW\n", m.RMSE)
	fmt.Printf("R²:                 %.3f\n", m.RSquared)
	fmt.Printf("Revenue impact:     $%.2f/month\n", m.RevenueImpact)
	fmt.Printf("Alert level:        %s\n", m.AlertLevel)
}
