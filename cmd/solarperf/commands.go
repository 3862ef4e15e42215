// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heliosgrid/solarperf/services/warehouse"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "solarperf",
		Short: "Solar fleet performance dashboard and analytics",
		Long: `solarperf serves the fleet performance dashboard API and runs
one-shot performance reports against the telemetry warehouse.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"path to the YAML config file (falls back to environment-only when absent)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
}

// loadConfig resolves the effective configuration. A missing file at
// the default path is not an error: container deployments configure
// everything through the environment.
func loadConfig() (*warehouse.Config, error) {
	path := configPath
	if !rootCmd.PersistentFlags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := warehouse.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
