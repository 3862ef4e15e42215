// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm abstracts the language-model backend used by the
// diagnostic assistant. The assistant only needs single-shot text
// generation; everything else (intent schemas, prompt construction)
// lives in services/assistant.
package llm

import "context"

// GenerationParams are optional sampling controls. Nil fields use the
// backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// SystemPrompt overrides the backend's default system role. The
	// assistant uses this to constrain output to its intent schema.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Client is the standard interface for any LLM backend.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
