// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewClientFromEnv selects a backend from SOLARPERF_LLM_BACKEND
// (openai, anthropic, or ollama; default openai) and builds it from
// its own environment variables.
func NewClientFromEnv() (Client, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SOLARPERF_LLM_BACKEND")))
	if backend == "" {
		backend = "openai"
	}
	slog.Info("Selecting LLM backend", "backend", backend)

	switch backend {
	case "openai":
		return NewOpenAIClient()
	case "anthropic":
		return NewAnthropicClient()
	case "ollama":
		return NewOllamaClient()
	default:
		return nil, fmt.Errorf("unknown LLM backend %q (want openai, anthropic, or ollama)", backend)
	}
}
