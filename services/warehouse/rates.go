// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/pkg/validation"
	"github.com/heliosgrid/solarperf/services/analytics"
)

// ratesFile is the on-disk shape of the PPA rates table.
type ratesFile struct {
	// DefaultRate in $/MWh applies to entities without an override.
	DefaultRate float64 `yaml:"default_rate"`

	// Rates maps entity ID to its contracted $/MWh rate. Keys are
	// normalized to lowercase on load.
	Rates map[string]float64 `yaml:"rates"`
}

// Rates holds the PPA rate table with hot reload. Commercial teams
// renegotiate rates mid-quarter; the dashboard picks the new numbers up
// without a restart.
//
// Snapshot returns an independent copy, so a reload never mutates a
// PPAConfig already handed to the analytics engine.
type Rates struct {
	mu       sync.RWMutex
	path     string
	current  analytics.PPAConfig
	log      *logging.Logger
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// ratesEnvVar carries per-entity rate overrides as a JSON object,
// e.g. {"site-alpha": 48.5}. Deployments without a mounted rates file
// set contract rates this way.
const ratesEnvVar = "SOLARPERF_PPA_RATES"

// LoadRates reads the rates file at path, then applies overrides from
// the SOLARPERF_PPA_RATES environment variable on top. An empty path
// yields a table with only the default rate (plus env overrides). A
// missing or unparsable file at startup is an error: serving wrong
// revenue numbers silently is worse than failing to start.
func LoadRates(path string, log *logging.Logger) (*Rates, error) {
	if log == nil {
		log = logging.Default()
	}
	r := &Rates{
		path: path,
		log:  log,
		done: make(chan struct{}),
	}

	cfg := analytics.PPAConfig{DefaultRate: analytics.DefaultPPARate}
	if path != "" {
		var err error
		cfg, err = readRatesFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := applyEnvRates(&cfg); err != nil {
		return nil, err
	}
	r.current = cfg

	log.Info("PPA rates loaded",
		"path", path,
		"overrides_configured", len(cfg.Rates))
	return r, nil
}

// applyEnvRates merges SOLARPERF_PPA_RATES into the table. Env
// overrides win over file entries.
func applyEnvRates(cfg *analytics.PPAConfig) error {
	raw := os.Getenv(ratesEnvVar)
	if raw == "" {
		return nil
	}

	var overrides map[string]float64
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return fmt.Errorf("failed to parse %s: %w", ratesEnvVar, err)
	}
	if cfg.Rates == nil {
		cfg.Rates = make(map[string]float64, len(overrides))
	}
	for id, rate := range overrides {
		if rate <= 0 {
			return fmt.Errorf("non-positive rate %v for entity %q in %s", rate, id, ratesEnvVar)
		}
		key, err := validation.SanitizeEntityID(id)
		if err != nil {
			return fmt.Errorf("bad entity ID in %s: %w", ratesEnvVar, err)
		}
		cfg.Rates[key] = rate
	}
	return nil
}

// readRatesFile parses and normalizes one rates file.
func readRatesFile(path string) (analytics.PPAConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analytics.PPAConfig{}, fmt.Errorf("failed to read rates file: %w", err)
	}

	var file ratesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return analytics.PPAConfig{}, fmt.Errorf("failed to parse rates file: %w", err)
	}

	cfg := analytics.PPAConfig{
		DefaultRate: file.DefaultRate,
		Rates:       make(map[string]float64, len(file.Rates)),
	}
	if cfg.DefaultRate <= 0 {
		cfg.DefaultRate = analytics.DefaultPPARate
	}
	for id, rate := range file.Rates {
		if rate <= 0 {
			return analytics.PPAConfig{}, fmt.Errorf("non-positive rate %v for entity %q", rate, id)
		}
		key, err := validation.SanitizeEntityID(id)
		if err != nil {
			return analytics.PPAConfig{}, fmt.Errorf("bad entity ID in rates file: %w", err)
		}
		cfg.Rates[key] = rate
	}
	return cfg, nil
}

// Snapshot returns a copy of the current rate table.
func (r *Rates) Snapshot() analytics.PPAConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copied := analytics.PPAConfig{
		DefaultRate: r.current.DefaultRate,
		Rates:       make(map[string]float64, len(r.current.Rates)),
	}
	for id, rate := range r.current.Rates {
		copied.Rates[id] = rate
	}
	return copied
}

// Watch reloads the rates file when it changes on disk. The watch is
// placed on the parent directory so editors that replace the file
// (write-to-temp + rename) still trigger a reload. A reload that fails
// to parse keeps the previous table and logs the error.
//
// Watch returns immediately; reloading runs until ctx is canceled or
// Stop is called. It is a no-op when no rates file is configured.
func (r *Rates) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rates watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch rates directory: %w", err)
	}
	r.watcher = watcher

	go r.watchLoop(ctx)
	return nil
}

func (r *Rates) watchLoop(ctx context.Context) {
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			r.reload()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn("rates watcher error", "error", err)
		}
	}
}

func (r *Rates) reload() {
	cfg, err := readRatesFile(r.path)
	if err != nil {
		r.log.Error("rates reload failed, keeping previous table",
			"path", r.path, "error", err)
		return
	}
	// Env overrides outrank the file on reload too.
	if err := applyEnvRates(&cfg); err != nil {
		r.log.Error("rates reload failed, keeping previous table",
			"path", r.path, "error", err)
		return
	}

	r.mu.Lock()
	r.current = cfg
	r.mu.Unlock()

	r.log.Info("PPA rates reloaded",
		"path", r.path,
		"overrides_configured", len(cfg.Rates))
}

// Stop stops the file watch, if one was started.
func (r *Rates) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.watcher != nil {
			r.watcher.Close()
		}
	})
}
