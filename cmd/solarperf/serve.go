// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"

	"github.com/heliosgrid/solarperf/pkg/logging"
	"github.com/heliosgrid/solarperf/services/assistant"
	"github.com/heliosgrid/solarperf/services/dashboard/handlers"
	"github.com/heliosgrid/solarperf/services/dashboard/observability"
	"github.com/heliosgrid/solarperf/services/dashboard/routes"
	"github.com/heliosgrid/solarperf/services/llm"
	"github.com/heliosgrid/solarperf/services/warehouse"
)

const (
	influxReadyAttempts = 10
	influxReadyBackoff  = 3 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "solarperf-dashboard",
		JSON:    cfg.Logging.JSON,
	})
	defer log.Close()

	log.Info("starting solarperf dashboard",
		"influx_url", cfg.Influx.URL,
		"influx_org", cfg.Influx.Org,
		"influx_bucket", cfg.Influx.Bucket,
		"sites", len(cfg.Fleet))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdown, err := initTracer(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	influxClient := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer influxClient.Close()

	if err := waitForInflux(ctx, influxClient, log); err != nil {
		return err
	}
	log.Info("connected to InfluxDB")

	store := warehouse.NewStore(influxClient.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, log)

	rates, err := warehouse.LoadRates(cfg.RatesFile, log)
	if err != nil {
		return fmt.Errorf("load PPA rates: %w", err)
	}
	defer rates.Stop()
	if err := rates.Watch(ctx); err != nil {
		return fmt.Errorf("watch PPA rates: %w", err)
	}

	responder := buildResponder(cfg, store, rates, log)

	metrics := observability.InitMetrics()
	h := handlers.New(cfg, store, rates, responder, metrics, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, h, &cfg.Server, metrics)

	addr := ":" + cfg.Server.Port
	log.Info("listening", "addr", addr)
	return router.Run(addr)
}

// buildResponder wires the diagnostic assistant. Free-text questions
// need an LLM backend; without one the assistant still executes
// structured queries.
func buildResponder(cfg *warehouse.Config, store *warehouse.Store, rates *warehouse.Rates, log *logging.Logger) *assistant.Responder {
	var classifier *assistant.IntentClassifier
	client, err := llm.NewClientFromEnv()
	if err != nil {
		log.Warn("no LLM backend configured, free-text questions disabled", "error", err)
	} else {
		siteIDs := make([]string, 0, len(cfg.Fleet))
		for _, site := range cfg.Fleet {
			siteIDs = append(siteIDs, site.ID)
		}
		classifier = assistant.NewIntentClassifier(client, siteIDs)
	}
	return assistant.NewResponder(store, rates, cfg, classifier, log)
}

// waitForInflux polls the warehouse health endpoint until it passes,
// covering the window where the stack's containers come up out of
// order.
func waitForInflux(ctx context.Context, client influxdb2.Client, log *logging.Logger) error {
	for i := 0; i < influxReadyAttempts; i++ {
		health, err := client.Health(ctx)
		if err == nil && health.Status == "pass" {
			return nil
		}

		var errMsg string
		if err != nil {
			errMsg = err.Error()
		} else if health != nil && health.Message != nil {
			errMsg = *health.Message
		}
		log.Warn("InfluxDB not ready, retrying", "attempt", i+1, "error", errMsg)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(influxReadyBackoff):
		}
	}
	return fmt.Errorf("InfluxDB not ready after %d attempts", influxReadyAttempts)
}
