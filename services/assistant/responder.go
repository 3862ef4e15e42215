// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/services/analytics"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

// fleetFetchConcurrency bounds parallel telemetry queries during
// fleet-wide fan-out so one question can't saturate InfluxDB.
const fleetFetchConcurrency = 4

// SampleStore is the telemetry dependency, satisfied by
// *warehouse.Store.
type SampleStore interface {
	SiteSamples(ctx context.Context, siteID string, w warehouse.Window) ([]analytics.Sample, error)
}

// RatesProvider supplies the current PPA rate table, satisfied by
// *warehouse.Rates.
type RatesProvider interface {
	Snapshot() analytics.PPAConfig
}

// Responder executes structured diagnostic queries against the fleet.
type Responder struct {
	store      SampleStore
	rates      RatesProvider
	cfg        *warehouse.Config
	classifier *IntentClassifier
	log        *logging.Logger
	now        func() time.Time
}

// NewResponder wires a responder. The classifier may be nil, in which
// case only structured queries are answerable.
func NewResponder(store SampleStore, rates RatesProvider, cfg *warehouse.Config, classifier *IntentClassifier, log *logging.Logger) *Responder {
	if log == nil {
		log = logging.Default()
	}
	return &Responder{
		store:      store,
		rates:      rates,
		cfg:        cfg,
		classifier: classifier,
		log:        log,
		now:        time.Now,
	}
}

// Answer handles a free-text question: classify, then execute.
func (r *Responder) Answer(ctx context.Context, question string) (*Response, error) {
	if r.classifier == nil {
		return nil, fmt.Errorf("free-text questions are not enabled (no LLM backend configured)")
	}
	query, err := r.classifier.Classify(ctx, question)
	if err != nil {
		return nil, err
	}
	r.log.Info("question classified", "kind", query.Kind, "site_id", query.SiteID)
	return r.Execute(ctx, query)
}

// Execute runs one structured query.
func (r *Responder) Execute(ctx context.Context, query Query) (*Response, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	window, err := warehouse.ParseWindow(query.StartDate, query.EndDate, r.now())
	if err != nil {
		return nil, err
	}

	switch query.Kind {
	case KindMetrics:
		return r.siteMetrics(ctx, query, window)
	case KindWorstPerformers:
		return r.worstPerformers(ctx, query, window)
	case KindPowerCurve:
		return r.powerCurve(ctx, query, window)
	case KindComparison:
		return r.comparison(ctx, query, window)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, query.Kind)
	}
}

// siteReport fetches and builds a report for one site, retrying once
// with the previous calendar month when the window has no valid data.
func (r *Responder) siteReport(ctx context.Context, siteID string, window warehouse.Window) (analytics.Report, warehouse.Window, bool, error) {
	samples, err := r.store.SiteSamples(ctx, siteID, window)
	if err != nil {
		return analytics.Report{}, window, false, err
	}

	report := analytics.BuildReport(siteID, samples, r.rates.Snapshot())
	if !report.NeedsFallback {
		return report, window, false, nil
	}

	prev := window.PreviousMonth()
	r.log.Info("no valid telemetry in window, retrying previous month",
		"site_id", siteID, "reason", report.FallbackReason, "fallback_month", prev.Month())

	samples, err = r.store.SiteSamples(ctx, siteID, prev)
	if err != nil {
		return analytics.Report{}, window, false, err
	}
	return analytics.BuildReport(siteID, samples, r.rates.Snapshot()), prev, true, nil
}

func (r *Responder) siteMetrics(ctx context.Context, query Query, window warehouse.Window) (*Response, error) {
	report, served, fellBack, err := r.siteReport(ctx, query.SiteID, window)
	if err != nil {
		return nil, err
	}

	name := r.cfg.SiteName(query.SiteID)
	if report.NeedsFallback {
		return &Response{
			Summary:   fmt.Sprintf("No valid telemetry for %s in %s or the month before (%s).", name, window.Month(), report.FallbackReason),
			Columns:   metricColumns,
			Data:      [][]any{},
			ChartType: "table",
			Query:     query,
			DataMonth: served.Month(),
			Fallback:  fellBack,
		}, nil
	}

	m := report.Summary.Metrics
	summary := fmt.Sprintf(
		"%s for %s: deviation %.1f%%, RMSE %.2f MW, R² %.3f, alert %s, est. revenue impact $%.2f/mo over %d valid readings.",
		name, served.Month(), m.DeviationPercentage, m.RMSE, m.RSquared, m.AlertLevel, m.RevenueImpact, report.Summary.PointCount)
	if fellBack {
		summary += fmt.Sprintf(" Served previous month (%s): the requested window had no valid telemetry.", served.Month())
	}

	return &Response{
		Summary:   summary,
		Columns:   metricColumns,
		Data:      [][]any{metricRow(query.SiteID, name, report)},
		ChartType: "table",
		Query:     query,
		DataMonth: served.Month(),
		Fallback:  fellBack,
	}, nil
}

var metricColumns = []string{
	"site_id", "site_name", "avg_actual_power", "avg_expected_power",
	"deviation_percentage", "rmse_mw", "r_squared", "alert_level",
	"revenue_impact_usd", "data_point_count",
}

func metricRow(siteID, name string, report analytics.Report) []any {
	m := report.Summary.Metrics
	return []any{
		siteID, name,
		report.Summary.AvgActualPower, report.Summary.AvgExpectedPower,
		m.DeviationPercentage, m.RMSE, m.RSquared, m.AlertLevel.String(),
		m.RevenueImpact, report.Summary.PointCount,
	}
}

// fleetReports fetches reports for every roster site in parallel.
// Sites whose queries fail are skipped with a warning so one flaky
// site doesn't take down a fleet answer; a fully failed fleet is an
// error.
func (r *Responder) fleetReports(ctx context.Context, window warehouse.Window) ([]siteResult, error) {
	sites := r.cfg.Fleet
	if len(sites) == 0 {
		return nil, fmt.Errorf("no sites configured in the fleet roster")
	}

	var mu sync.Mutex
	results := make([]siteResult, 0, len(sites))
	failures := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fleetFetchConcurrency)
	for _, site := range sites {
		g.Go(func() error {
			samples, err := r.store.SiteSamples(ctx, site.ID, window)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				r.log.Warn("fleet fetch skipped site", "site_id", site.ID, "error", err)
				return nil
			}
			results = append(results, siteResult{
				SiteID:   site.ID,
				SiteName: r.cfg.SiteName(site.ID),
				Report:   analytics.BuildReport(site.ID, samples, r.rates.Snapshot()),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("telemetry queries failed for all %d fleet sites", failures)
	}

	// Fan-out completion order is nondeterministic; restore roster order.
	order := make(map[string]int, len(sites))
	for i, site := range sites {
		order[site.ID] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].SiteID] < order[results[j].SiteID]
	})
	return results, nil
}

func (r *Responder) worstPerformers(ctx context.Context, query Query, window warehouse.Window) (*Response, error) {
	results, err := r.fleetReports(ctx, window)
	if err != nil {
		return nil, err
	}

	entities := make([]analytics.RankedEntity, 0, len(results))
	for _, res := range results {
		if res.Report.NeedsFallback {
			continue
		}
		entities = append(entities, analytics.RankedEntity{
			EntityID:         res.SiteID,
			EntityName:       res.SiteName,
			AvgActualPower:   res.Report.Summary.AvgActualPower,
			AvgExpectedPower: res.Report.Summary.AvgExpectedPower,
			DataPointCount:   res.Report.Summary.PointCount,
			Metrics:          res.Report.Summary.Metrics,
		})
	}
	if len(entities) == 0 {
		return &Response{
			Summary:   fmt.Sprintf("No fleet site has valid telemetry in %s.", window.Month()),
			Columns:   metricColumns,
			Data:      [][]any{},
			ChartType: "table",
			Query:     query,
			DataMonth: window.Month(),
		}, nil
	}

	// Most negative deviation first: the sites losing the most output.
	// Deviation, not fit quality, drives this ranking on purpose; a
	// site can track its model closely while still underproducing.
	ranked, err := analytics.Rank(entities, analytics.RankByDeviation, analytics.Ascending, query.Limit)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(ranked))
	for _, e := range ranked {
		rows = append(rows, []any{
			e.EntityID, e.EntityName, e.AvgActualPower, e.AvgExpectedPower,
			e.Metrics.DeviationPercentage, e.Metrics.RMSE, e.Metrics.RSquared,
			e.Metrics.AlertLevel.String(), e.Metrics.RevenueImpact, e.DataPointCount,
		})
	}

	worst := ranked[0]
	summary := fmt.Sprintf(
		"Worst performer in %s: %s (deviation %.1f%%, RMSE %.2f MW, alert %s, est. revenue impact $%.2f/mo). %d of %d sites ranked.",
		window.Month(), worst.EntityName, worst.Metrics.DeviationPercentage,
		worst.Metrics.RMSE, worst.Metrics.AlertLevel, worst.Metrics.RevenueImpact,
		len(ranked), len(results))

	return &Response{
		Summary:   summary,
		Columns:   metricColumns,
		Data:      rows,
		ChartType: "bar",
		Query:     query,
		DataMonth: window.Month(),
	}, nil
}

var powerCurveColumns = []string{
	"timestamp", "actual_power", "expected_power", "poa_irradiance",
}

func (r *Responder) powerCurve(ctx context.Context, query Query, window warehouse.Window) (*Response, error) {
	report, served, fellBack, err := r.siteReport(ctx, query.SiteID, window)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(report.Points))
	for _, p := range report.Points {
		rows = append(rows, []any{
			p.Timestamp.Format(time.RFC3339), p.ActualPower, p.ExpectedPower, p.POAIrradiance,
		})
	}

	name := r.cfg.SiteName(query.SiteID)
	summary := fmt.Sprintf("Power curve for %s, %s: %d valid readings, avg actual %.1f kW vs expected %.1f kW.",
		name, served.Month(), report.Summary.PointCount,
		report.Summary.AvgActualPower, report.Summary.AvgExpectedPower)
	if report.NeedsFallback {
		summary = fmt.Sprintf("No valid telemetry for %s in %s or the month before.", name, window.Month())
	}

	return &Response{
		Summary:   summary,
		Columns:   powerCurveColumns,
		Data:      rows,
		ChartType: "line",
		Query:     query,
		DataMonth: served.Month(),
		Fallback:  fellBack,
	}, nil
}

func (r *Responder) comparison(ctx context.Context, query Query, window warehouse.Window) (*Response, error) {
	rows := make([][]any, 0, len(query.SiteIDs))
	parts := make([]string, 0, len(query.SiteIDs))

	for _, siteID := range query.SiteIDs {
		samples, err := r.store.SiteSamples(ctx, siteID, window)
		if err != nil {
			return nil, err
		}
		report := analytics.BuildReport(siteID, samples, r.rates.Snapshot())
		name := r.cfg.SiteName(siteID)

		if report.NeedsFallback {
			parts = append(parts, fmt.Sprintf("%s: no valid telemetry", name))
			continue
		}
		rows = append(rows, metricRow(siteID, name, report))
		parts = append(parts, fmt.Sprintf("%s %.1f%% (%s)",
			name, report.Summary.Metrics.DeviationPercentage, report.Summary.Metrics.AlertLevel))
	}

	return &Response{
		Summary:   fmt.Sprintf("Comparison for %s: %s.", window.Month(), strings.Join(parts, "; ")),
		Columns:   metricColumns,
		Data:      rows,
		ChartType: "bar",
		Query:     query,
		DataMonth: window.Month(),
	}, nil
}
