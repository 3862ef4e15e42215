// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/services/analytics"
	"github.com/heliosgrid/solarperf/services/assistant"
	"github.com/heliosgrid/solarperf/services/dashboard/datatypes"
	"github.com/heliosgrid/solarperf/services/dashboard/middleware"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

// ============================================================================
// Test Fixtures
// ============================================================================

// stubStore serves canned samples keyed by "entityID|YYYY-MM".
type stubStore struct {
	site     map[string][]analytics.Sample
	skid     map[string][]analytics.Sample
	inverter map[string][]analytics.Sample
	errs     map[string]error
}

func storeKey(id string, w warehouse.Window) string {
	return id + "|" + w.Month()
}

func (s *stubStore) SiteSamples(_ context.Context, siteID string, w warehouse.Window) ([]analytics.Sample, error) {
	if err := s.errs[siteID]; err != nil {
		return nil, err
	}
	return s.site[storeKey(siteID, w)], nil
}

func (s *stubStore) SkidSamples(_ context.Context, siteID string, w warehouse.Window) ([]analytics.Sample, error) {
	if err := s.errs[siteID]; err != nil {
		return nil, err
	}
	return s.skid[storeKey(siteID, w)], nil
}

func (s *stubStore) InverterSamples(_ context.Context, skidID string, w warehouse.Window) ([]analytics.Sample, error) {
	if err := s.errs[skidID]; err != nil {
		return nil, err
	}
	return s.inverter[storeKey(skidID, w)], nil
}

type stubRates struct{}

func (stubRates) Snapshot() analytics.PPAConfig {
	return analytics.PPAConfig{DefaultRate: analytics.DefaultPPARate}
}

// stubResponder records the last call and returns a canned response.
type stubResponder struct {
	resp         *assistant.Response
	err          error
	lastQuestion string
	lastQuery    assistant.Query
}

func (r *stubResponder) Answer(_ context.Context, question string) (*assistant.Response, error) {
	r.lastQuestion = question
	return r.resp, r.err
}

func (r *stubResponder) Execute(_ context.Context, query assistant.Query) (*assistant.Response, error) {
	r.lastQuery = query
	return r.resp, r.err
}

// entitySamples builds hourly readings for one entity with actual
// power running `under` fraction below expected.
func entitySamples(entityID string, year int, month time.Month, under float64) []analytics.Sample {
	samples := make([]analytics.Sample, 0, 8)
	for h := 0; h < 8; h++ {
		expected := 400.0 + 50.0*float64(h%4)
		samples = append(samples, analytics.Sample{
			Timestamp:     time.Date(year, month, 10, 6+h, 0, 0, 0, time.UTC),
			EntityID:      entityID,
			POAIrradiance: 700.0,
			ActualPower:   expected * (1 - under),
			ExpectedPower: expected,
			Availability:  1.0,
		})
	}
	return samples
}

func testConfig() *warehouse.Config {
	return &warehouse.Config{
		Fleet: []warehouse.SiteConfig{
			{ID: "site-alpha", Name: "Alpha Ranch", CapacityMW: 100, Skids: []warehouse.SkidConfig{
				{ID: "skid-a1", Name: "Alpha Skid 1"},
				{ID: "skid-a2", Name: "Alpha Skid 2"},
			}},
			{ID: "site-beta", Name: "Beta Flats", CapacityMW: 80},
		},
	}
}

// testHandlers builds a handler set pinned to June 2026 so the
// default window is deterministic.
func testHandlers(store *stubStore, responder DiagnosticResponder) *Handlers {
	h := New(testConfig(), store, stubRates{}, responder, nil, nil)
	h.now = func() time.Time {
		return time.Date(2026, time.June, 20, 12, 0, 0, 0, time.UTC)
	}
	return h
}

func testRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/api/sites", h.ListSites)
	router.GET("/api/sites/:siteID/performance", h.SitePerformance)
	router.GET("/api/sites/:siteID/skids", h.SiteSkids)
	router.GET("/api/skids/:skidID/inverters", h.SkidInverters)
	router.POST("/api/query", h.Query)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	fields := map[string]json.RawMessage{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields), "body: %s", w.Body.String())
	}
	return w, fields
}

// ============================================================================
// Health and Roster Tests
// ============================================================================

func TestHealth(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w, _ := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestListSites(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.SitesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "site-alpha", resp.Sites[0].SiteID)
	assert.Equal(t, "Alpha Ranch", resp.Sites[0].SiteName)
	assert.Equal(t, 100.0, resp.Sites[0].CapacityMW)
	assert.Equal(t, "site-beta", resp.Sites[1].SiteID)
}

// ============================================================================
// Site Performance Tests
// ============================================================================

func TestSitePerformance_OK(t *testing.T) {
	store := &stubStore{site: map[string][]analytics.Sample{
		"site-alpha|2026-06": entitySamples("site-alpha", 2026, time.June, 0.10),
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/sites/site-alpha/performance?start_date=2026-06-01&end_date=2026-06-30", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.PerformanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "site-alpha", resp.SiteID)
	assert.Equal(t, "Alpha Ranch", resp.SiteName)
	assert.Equal(t, "2026-06", resp.DataMonth)
	assert.False(t, resp.DataFallback)
	assert.Len(t, resp.DataPoints, 8)
	assert.Equal(t, 8, resp.Summary.DataPointCount)
	assert.InDelta(t, -10.0, resp.Summary.DeviationPercentage, 1e-9)
	assert.Equal(t, "CRITICAL", resp.Summary.AlertLevel)
	assert.NotEmpty(t, resp.Summary.FirstReading)
	assert.Greater(t, resp.Summary.TotalExpectedEnergyKWh, resp.Summary.TotalActualEnergyKWh)
}

// Chart clients key on exact field names, so the point and summary
// shapes are pinned against the raw JSON rather than typed structs.
func TestSitePerformance_WireFieldNames(t *testing.T) {
	store := &stubStore{site: map[string][]analytics.Sample{
		"site-alpha|2026-06": entitySamples("site-alpha", 2026, time.June, 0.10),
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/sites/site-alpha/performance?start_date=2026-06-01&end_date=2026-06-30", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DataPoints []map[string]json.RawMessage `json:"data_points"`
		Summary    map[string]json.RawMessage   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.DataPoints)

	point := resp.DataPoints[0]
	for _, key := range []string{
		"timestamp", "poa_irradiance", "actual_power", "expected_power",
		"inverter_availability",
	} {
		assert.Contains(t, point, key)
	}
	assert.NotContains(t, point, "actual_power_kw")
	assert.NotContains(t, point, "expected_power_kw")
	assert.Equal(t, "1", string(point["inverter_availability"]))

	assert.Contains(t, resp.Summary, "avg_actual_power")
	assert.Contains(t, resp.Summary, "avg_expected_power")
	assert.NotContains(t, resp.Summary, "avg_actual_power_kw")
}

func TestSitePerformance_DefaultWindowIsCurrentMonth(t *testing.T) {
	store := &stubStore{site: map[string][]analytics.Sample{
		"site-alpha|2026-06": entitySamples("site-alpha", 2026, time.June, 0.02),
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/performance", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.PerformanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-06", resp.DataMonth)
}

func TestSitePerformance_FallbackToPreviousMonth(t *testing.T) {
	store := &stubStore{site: map[string][]analytics.Sample{
		"site-alpha|2026-05": entitySamples("site-alpha", 2026, time.May, 0.05),
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/sites/site-alpha/performance?start_date=2026-06-01&end_date=2026-06-30", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.PerformanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.DataFallback)
	assert.Equal(t, "2026-05", resp.DataMonth)
	assert.Equal(t, 8, resp.Summary.DataPointCount)
}

func TestSitePerformance_NoDataAnywhere(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/performance", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NoDataFound")
}

func TestSitePerformance_InvalidSiteID(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/Site%20Alpha/performance", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidSiteID")
}

func TestSitePerformance_InvalidWindow(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/sites/site-alpha/performance?start_date=2026-06-01", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidWindow")
}

func TestSitePerformance_WarehouseError(t *testing.T) {
	store := &stubStore{errs: map[string]error{"site-alpha": fmt.Errorf("influx unreachable")}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/performance", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "WarehouseError")
	// Internal failure details must not leak to the client.
	assert.NotContains(t, w.Body.String(), "influx unreachable")
}

func TestSitePerformance_ErrorLogCarriesRequestID(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(logging.Config{Quiet: true, LogDir: dir, Service: "dashboard-test"})

	store := &stubStore{errs: map[string]error{"site-alpha": errors.New("influx unreachable")}}
	h := New(testConfig(), store, stubRates{}, nil, nil, log)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/api/sites/:siteID/performance", h.SitePerformance)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/performance", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-4471")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NoError(t, log.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"req-4471"`)
}

// ============================================================================
// Skid Leaderboard Tests
// ============================================================================

func TestSiteSkids_RankedWorstFirst(t *testing.T) {
	batch := append(entitySamples("skid-a1", 2026, time.June, 0.02),
		entitySamples("skid-a2", 2026, time.June, 0.15)...)
	store := &stubStore{skid: map[string][]analytics.Sample{
		"site-alpha|2026-06": batch,
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/skids", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.SkidsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "site-alpha", resp.SiteID)
	assert.Equal(t, "2026-06", resp.DataMonth)

	// Worst deviation first.
	assert.Equal(t, "skid-a2", resp.Skids[0].SkidID)
	assert.Equal(t, "Alpha Skid 2", resp.Skids[0].SkidName)
	assert.InDelta(t, -15.0, resp.Skids[0].DeviationPercentage, 1e-9)
	assert.Equal(t, "skid-a1", resp.Skids[1].SkidID)
	assert.InDelta(t, -2.0, resp.Skids[1].DeviationPercentage, 1e-9)
}

func TestSiteSkids_SkipsEntitiesWithNoValidReadings(t *testing.T) {
	dead := []analytics.Sample{{
		Timestamp:     time.Date(2026, time.June, 10, 6, 0, 0, 0, time.UTC),
		EntityID:      "skid-a2",
		ActualPower:   100,
		ExpectedPower: 110,
		Availability:  0.5, // fails the quality filter
	}}
	batch := append(entitySamples("skid-a1", 2026, time.June, 0.02), dead...)
	store := &stubStore{skid: map[string][]analytics.Sample{
		"site-alpha|2026-06": batch,
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/skids", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.SkidsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "skid-a1", resp.Skids[0].SkidID)
}

func TestSiteSkids_NoData(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sites/site-alpha/skids", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NoDataFound")
}

// ============================================================================
// Inverter Leaderboard Tests
// ============================================================================

func TestSkidInverters_AvailabilityRatio(t *testing.T) {
	good := entitySamples("inv-001", 2026, time.June, 0.05)
	// Two of inv-002's readings fail the filter, so availability drops.
	flaky := entitySamples("inv-002", 2026, time.June, 0.05)
	flaky[0].Availability = 0.0
	flaky[1].Availability = 0.0

	store := &stubStore{inverter: map[string][]analytics.Sample{
		"skid-a1|2026-06": append(good, flaky...),
	}}
	router := testRouter(testHandlers(store, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/skids/skid-a1/inverters", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.InvertersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "skid-a1", resp.SkidID)

	byID := map[string]datatypes.InverterPerformance{}
	for _, inv := range resp.Inverters {
		byID[inv.InverterID] = inv
	}
	assert.InDelta(t, 1.0, byID["inv-001"].Availability, 1e-9)
	assert.Equal(t, 8, byID["inv-001"].DataPointCount)
	assert.InDelta(t, 0.75, byID["inv-002"].Availability, 1e-9)
	assert.Equal(t, 6, byID["inv-002"].DataPointCount)
}

func TestSkidInverters_InvalidSkidID(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/skids/DROP%20TABLE/inverters", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidSkidID")
}

// ============================================================================
// Query Endpoint Tests
// ============================================================================

func TestQuery_StructuredKind(t *testing.T) {
	responder := &stubResponder{resp: &assistant.Response{
		Summary:   "Alpha Ranch deviation -3.2%",
		ChartType: "table",
	}}
	router := testRouter(testHandlers(&stubStore{}, responder))

	w, _ := doJSON(t, router, http.MethodPost, "/api/query", datatypes.QueryRequest{
		Kind:   "metrics",
		SiteID: "site-alpha",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, assistant.KindMetrics, responder.lastQuery.Kind)
	assert.Equal(t, "site-alpha", responder.lastQuery.SiteID)
	assert.Contains(t, w.Body.String(), "Alpha Ranch deviation")
}

func TestQuery_FreeTextQuestion(t *testing.T) {
	responder := &stubResponder{resp: &assistant.Response{Summary: "fleet looks healthy"}}
	router := testRouter(testHandlers(&stubStore{}, responder))

	w, _ := doJSON(t, router, http.MethodPost, "/api/query", datatypes.QueryRequest{
		Question: "which sites are underperforming this month?",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "which sites are underperforming this month?", responder.lastQuestion)
}

func TestQuery_NoResponderConfigured(t *testing.T) {
	router := testRouter(testHandlers(&stubStore{}, nil))

	w, _ := doJSON(t, router, http.MethodPost, "/api/query", datatypes.QueryRequest{
		Kind: "worst_performers",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "AssistantUnavailable")
}

func TestQuery_InvalidRequest(t *testing.T) {
	responder := &stubResponder{resp: &assistant.Response{}}
	router := testRouter(testHandlers(&stubStore{}, responder))

	tests := []struct {
		name string
		req  datatypes.QueryRequest
	}{
		{"neither question nor kind", datatypes.QueryRequest{}},
		{"both question and kind", datatypes.QueryRequest{Question: "hi", Kind: "metrics"}},
		{"unknown kind", datatypes.QueryRequest{Kind: "prophecy"}},
		{"comparison with one site", datatypes.QueryRequest{Kind: "comparison", SiteIDs: []string{"site-alpha"}}},
		{"bad date format", datatypes.QueryRequest{Kind: "metrics", SiteID: "site-alpha", StartDate: "June 1st"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := doJSON(t, router, http.MethodPost, "/api/query", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "InvalidRequest")
		})
	}
}

func TestQuery_ValidationErrorFromResponder(t *testing.T) {
	responder := &stubResponder{err: fmt.Errorf("%w: %q", assistant.ErrUnknownKind, "prophecy")}
	router := testRouter(testHandlers(&stubStore{}, responder))

	w, _ := doJSON(t, router, http.MethodPost, "/api/query", datatypes.QueryRequest{
		Question: "tell me a prophecy",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidQuery")
}

func TestQuery_InvalidEntityIsClientError(t *testing.T) {
	responder := &stubResponder{err: fmt.Errorf("%w: %q", assistant.ErrInvalidEntity, "Site Alpha")}
	router := testRouter(testHandlers(&stubStore{}, responder))

	w, _ := doJSON(t, router, http.MethodPost, "/api/query", datatypes.QueryRequest{
		Question: "how is Site Alpha doing?",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidQuery")
}

func TestQuery_BackendError(t *testing.T) {
	responder := &stubResponder{err: errors.New("openai timeout")}
	router := testRouter(testHandlers(&stubStore{}, responder))

	w, _ := doJSON(t, router, http.MethodPost, "/api/query", datatypes.QueryRequest{
		Question: "how is the fleet?",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "QueryFailed")
	assert.NotContains(t, w.Body.String(), "openai timeout")
}

func TestQuery_MalformedJSON(t *testing.T) {
	responder := &stubResponder{resp: &assistant.Response{}}
	router := testRouter(testHandlers(&stubStore{}, responder))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
