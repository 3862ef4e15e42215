// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package warehouse

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, loaded from YAML with
// environment-variable overrides for deployment.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Influx  InfluxConfig  `yaml:"influx"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`

	// Fleet is the site roster. Telemetry for sites not listed here is
	// still queryable by ID; the roster supplies display names and
	// capacity for the API surface.
	Fleet []SiteConfig `yaml:"fleet"`

	// RatesFile points at the PPA rates YAML. Empty disables overrides
	// and every entity gets the default rate.
	RatesFile string `yaml:"rates_file"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`

	// AuthUser/AuthPassword are the static basic-auth credentials for
	// the API. Empty user disables auth (local development).
	AuthUser     string `yaml:"auth_user"`
	AuthPassword string `yaml:"auth_password"`

	// QueryRatePerMinute caps POST /api/query requests. Zero uses the
	// default of 20.
	QueryRatePerMinute int `yaml:"query_rate_per_minute"`
}

// InfluxConfig configures the telemetry store connection.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // empty disables file logging
	JSON  bool   `yaml:"json"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // host:port of the OTLP/gRPC collector
}

// SiteConfig is one site in the fleet roster.
type SiteConfig struct {
	ID         string       `yaml:"id"`
	Name       string       `yaml:"name"`
	CapacityMW float64      `yaml:"capacity_mw"`
	Skids      []SkidConfig `yaml:"skids"`
}

// SkidConfig is one skid within a site.
type SkidConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoadConfig reads the YAML config at path, applies defaults and
// environment overrides, and validates the result. An empty path skips
// the file and builds the config from defaults and environment alone.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"SOLARPERF_PORT", &c.Server.Port},
		{"SOLARPERF_AUTH_USER", &c.Server.AuthUser},
		{"SOLARPERF_AUTH_PASSWORD", &c.Server.AuthPassword},
		{"INFLUXDB_URL", &c.Influx.URL},
		{"INFLUXDB_TOKEN", &c.Influx.Token},
		{"INFLUXDB_ORG", &c.Influx.Org},
		{"INFLUXDB_BUCKET", &c.Influx.Bucket},
		{"SOLARPERF_RATES_FILE", &c.RatesFile},
		{"SOLARPERF_LOG_LEVEL", &c.Logging.Level},
		{"SOLARPERF_LOG_DIR", &c.Logging.Dir},
		{"SOLARPERF_OTLP_ENDPOINT", &c.Tracing.Endpoint},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.QueryRatePerMinute <= 0 {
		c.Server.QueryRatePerMinute = 20
	}
	if c.Influx.URL == "" {
		c.Influx.URL = "http://influxdb:8086"
	}
	if c.Influx.Org == "" {
		c.Influx.Org = "heliosgrid"
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = "solar-telemetry"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
}

// Validate checks required settings and roster consistency.
func (c *Config) Validate() error {
	if c.Influx.Token == "" {
		return fmt.Errorf("influx token is required (set influx.token or INFLUXDB_TOKEN)")
	}

	seen := make(map[string]bool, len(c.Fleet))
	for _, site := range c.Fleet {
		if site.ID == "" {
			return fmt.Errorf("fleet site with empty id")
		}
		if seen[site.ID] {
			return fmt.Errorf("duplicate fleet site id %q", site.ID)
		}
		seen[site.ID] = true
	}
	return nil
}

// Site returns the roster entry for a site ID, if present.
func (c *Config) Site(siteID string) (SiteConfig, bool) {
	for _, site := range c.Fleet {
		if site.ID == siteID {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// SiteName returns the display name for a site, falling back to the ID
// for sites not in the roster.
func (c *Config) SiteName(siteID string) string {
	if site, ok := c.Site(siteID); ok && site.Name != "" {
		return site.Name
	}
	return siteID
}

// SkidName returns the display name for a skid within a site, falling
// back to the skid ID.
func (c *Config) SkidName(siteID, skidID string) string {
	if site, ok := c.Site(siteID); ok {
		for _, skid := range site.Skids {
			if skid.ID == skidID && skid.Name != "" {
				return skid.Name
			}
		}
	}
	return skidID
}
