// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// database queries, file paths, or subprocess calls. Using these validators
// prevents injection attacks (Flux injection, command injection, path traversal).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// entityIDPattern matches valid fleet entity identifiers: site, skid,
// and inverter IDs as they appear in telemetry tags.
// Allows: lowercase letters, digits, hyphens, underscores.
// Max length: 64 characters.
var entityIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// ValidateEntityID validates a site, skid, or inverter identifier
// before it is interpolated into a Flux query.
//
// Valid IDs:
//   - 1-64 characters
//   - Lowercase letters a-z
//   - Digits 0-9
//   - Hyphens (-) and underscores (_), e.g. site-alpha-skid-01
//
// Returns an error if the ID is invalid.
//
// Example:
//
//	if err := validation.ValidateEntityID(siteID); err != nil {
//	    return nil, fmt.Errorf("invalid site ID: %w", err)
//	}
//	// Safe to use in Flux query
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if !entityIDPattern.MatchString(id) {
		return fmt.Errorf("invalid entity ID format: %q (must be 1-64 lowercase alphanumeric chars, hyphens, or underscores)", id)
	}

	return nil
}

// ValidateEntityIDs validates multiple entity identifiers.
// Returns an error listing all invalid IDs if any fail validation.
func ValidateEntityIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateEntityID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid entity IDs: %v", invalid)
	}
	return nil
}

// SanitizeEntityID normalizes and validates an entity identifier.
// Returns the lowercase ID if valid, or an error if invalid.
//
// Use this when you need both validation and normalization, e.g. for
// PPA rate lookups, which are keyed by lowercase entity ID:
//
//	safeID, err := validation.SanitizeEntityID(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeID is lowercase and validated
func SanitizeEntityID(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateEntityID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
