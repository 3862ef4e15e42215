// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/heliosgrid/solarperf/services/llm"
)

// classifierSystemPrompt constrains the model to emit exactly one JSON
// object matching the Query schema. The model only routes; it never
// computes metrics or sees telemetry.
const classifierSystemPrompt = `You are a query router for a solar fleet performance dashboard.
Map the operator's question to exactly one JSON object with this schema:
{"kind": "metrics" | "worst_performers" | "power_curve" | "comparison",
 "site_id": "<site id, for metrics/power_curve>",
 "site_ids": ["<ids>", "for comparison"],
 "limit": <integer, for worst_performers, 0 for all>,
 "start_date": "YYYY-MM-DD or empty",
 "end_date": "YYYY-MM-DD or empty"}
Known sites: %s.
Respond with the JSON object only, no prose, no code fences.`

// IntentClassifier maps a free-text question to a structured Query
// using an LLM backend.
type IntentClassifier struct {
	client llm.Client
	sites  []string
}

// NewIntentClassifier creates a classifier. The site list is included
// in the prompt so the model maps plant names to roster IDs.
func NewIntentClassifier(client llm.Client, sites []string) *IntentClassifier {
	return &IntentClassifier{client: client, sites: sites}
}

// Classify maps a question to a Query. The model's answer is parsed
// and validated; anything outside the canned schema is an error, not a
// best-effort guess.
func (c *IntentClassifier) Classify(ctx context.Context, question string) (Query, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Query{}, fmt.Errorf("question cannot be empty")
	}

	temperature := float32(0)
	maxTokens := 200
	raw, err := c.client.Generate(ctx, question, llm.GenerationParams{
		SystemPrompt: fmt.Sprintf(classifierSystemPrompt, strings.Join(c.sites, ", ")),
		Temperature:  &temperature,
		MaxTokens:    &maxTokens,
	})
	if err != nil {
		return Query{}, fmt.Errorf("intent classification failed: %w", err)
	}

	query, err := parseIntent(raw)
	if err != nil {
		return Query{}, fmt.Errorf("intent classification returned an unusable answer: %w", err)
	}
	return query, nil
}

// parseIntent extracts and validates the Query JSON from a model
// answer. Models occasionally wrap JSON in code fences despite
// instructions, so fences are stripped before decoding.
func parseIntent(raw string) (Query, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var query Query
	decoder := json.NewDecoder(strings.NewReader(cleaned))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&query); err != nil {
		return Query{}, fmt.Errorf("failed to parse intent JSON: %w", err)
	}

	if err := query.Validate(); err != nil {
		return Query{}, err
	}
	return query, nil
}
