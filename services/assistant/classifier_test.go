// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosgrid/solarperf/services/llm"
)

// stubLLM returns a canned answer and records the prompt.
type stubLLM struct {
	answer     string
	err        error
	lastPrompt string
	lastParams llm.GenerationParams
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	s.lastPrompt = prompt
	s.lastParams = params
	return s.answer, s.err
}

func TestIntentClassifier_Classify(t *testing.T) {
	stub := &stubLLM{answer: `{"kind": "metrics", "site_id": "site-alpha"}`}
	c := NewIntentClassifier(stub, []string{"site-alpha", "site-beta"})

	query, err := c.Classify(context.Background(), "how is alpha doing this month?")
	require.NoError(t, err)

	assert.Equal(t, KindMetrics, query.Kind)
	assert.Equal(t, "site-alpha", query.SiteID)
	assert.Equal(t, "how is alpha doing this month?", stub.lastPrompt)
	assert.Contains(t, stub.lastParams.SystemPrompt, "site-alpha, site-beta",
		"roster must be in the system prompt so the model can map names to IDs")
	require.NotNil(t, stub.lastParams.Temperature)
	assert.Equal(t, float32(0), *stub.lastParams.Temperature)
}

func TestIntentClassifier_EmptyQuestion(t *testing.T) {
	c := NewIntentClassifier(&stubLLM{}, nil)
	_, err := c.Classify(context.Background(), "   ")
	assert.Error(t, err)
}

func TestIntentClassifier_BackendError(t *testing.T) {
	c := NewIntentClassifier(&stubLLM{err: errors.New("rate limited")}, nil)
	_, err := c.Classify(context.Background(), "worst sites?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Query
		wantErr bool
	}{
		{
			name: "plain JSON",
			raw:  `{"kind": "worst_performers", "limit": 5}`,
			want: Query{Kind: KindWorstPerformers, Limit: 5},
		},
		{
			name: "fenced JSON",
			raw:  "```json\n{\"kind\": \"metrics\", \"site_id\": \"site-alpha\"}\n```",
			want: Query{Kind: KindMetrics, SiteID: "site-alpha"},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"kind\": \"comparison\", \"site_ids\": [\"site-alpha\", \"site-beta\"]}\n```",
			want: Query{Kind: KindComparison, SiteIDs: []string{"site-alpha", "site-beta"}},
		},
		{
			name: "dates carried through",
			raw:  `{"kind": "power_curve", "site_id": "site-alpha", "start_date": "2026-06-01", "end_date": "2026-06-30"}`,
			want: Query{Kind: KindPowerCurve, SiteID: "site-alpha", StartDate: "2026-06-01", EndDate: "2026-06-30"},
		},
		{name: "prose instead of JSON", raw: "The worst site is alpha.", wantErr: true},
		{name: "unknown kind", raw: `{"kind": "forecast"}`, wantErr: true},
		{name: "unknown field", raw: `{"kind": "metrics", "site_id": "site-alpha", "sql": "DROP TABLE"}`, wantErr: true},
		{name: "metrics without site", raw: `{"kind": "metrics"}`, wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntent(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
		errIs   error
	}{
		{name: "metrics with site", query: Query{Kind: KindMetrics, SiteID: "site-alpha"}},
		{name: "metrics without site", query: Query{Kind: KindMetrics}, wantErr: true, errIs: ErrMissingSite},
		{name: "power curve without site", query: Query{Kind: KindPowerCurve}, wantErr: true, errIs: ErrMissingSite},
		{name: "worst performers no limit", query: Query{Kind: KindWorstPerformers}},
		{name: "worst performers negative limit", query: Query{Kind: KindWorstPerformers, Limit: -1}, wantErr: true},
		{name: "comparison two sites", query: Query{Kind: KindComparison, SiteIDs: []string{"a", "b"}}},
		{name: "comparison one site", query: Query{Kind: KindComparison, SiteIDs: []string{"a"}}, wantErr: true},
		{name: "metrics with malformed site", query: Query{Kind: KindMetrics, SiteID: "site alpha; drop"}, wantErr: true, errIs: ErrInvalidEntity},
		{name: "comparison with malformed site", query: Query{Kind: KindComparison, SiteIDs: []string{"site-a", `x" or true`}}, wantErr: true, errIs: ErrInvalidEntity},
		{name: "unknown kind", query: Query{Kind: "forecast"}, wantErr: true, errIs: ErrUnknownKind},
		{name: "empty kind", query: Query{}, wantErr: true, errIs: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}
