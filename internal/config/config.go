/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package config holds process-level configuration read from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration for the mixer core and its
// surrounding services.
type Config struct {
	Environment string

	// Audio host (C1)
	SampleRate      int // Hz
	BlockSize       int // frames per processing quantum
	TargetLatencyMS int

	// Stem player (C3)
	DriftThresholdMS      float64
	SyncMonitorIntervalMS int

	// Analysis client (C6)
	AnalysisTimeoutMS  int
	AnalysisWorkerAddr string // optional NATS URL; empty = in-process fallback worker

	// Store / event bus (C10)
	RedisAddr string // optional; empty = in-memory-only event bus

	// Gesture mapper (C9)
	MappingProfilePath string // optional YAML file; empty = built-in default profile

	// Telemetry
	MetricsBind       string
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"GESTUREDECK_ENV"}, "development"),

		SampleRate:      getEnvIntAny([]string{"GESTUREDECK_SAMPLE_RATE"}, 48000),
		BlockSize:       getEnvIntAny([]string{"GESTUREDECK_BLOCK_SIZE"}, 128),
		TargetLatencyMS: getEnvIntAny([]string{"GESTUREDECK_TARGET_LATENCY_MS"}, 20),

		DriftThresholdMS:      getEnvFloatAny([]string{"GESTUREDECK_DRIFT_THRESHOLD_MS"}, 5.0),
		SyncMonitorIntervalMS: getEnvIntAny([]string{"GESTUREDECK_SYNC_MONITOR_INTERVAL_MS"}, 50),

		AnalysisTimeoutMS:  getEnvIntAny([]string{"GESTUREDECK_ANALYSIS_TIMEOUT_MS"}, 3000),
		AnalysisWorkerAddr: getEnvAny([]string{"GESTUREDECK_ANALYSIS_WORKER_ADDR"}, ""),

		RedisAddr: getEnvAny([]string{"GESTUREDECK_REDIS_ADDR"}, ""),

		MappingProfilePath: getEnvAny([]string{"GESTUREDECK_MAPPING_PROFILE_PATH"}, ""),

		MetricsBind:       getEnvAny([]string{"GESTUREDECK_METRICS_BIND"}, "127.0.0.1:9000"),
		TracingEnabled:    getEnvBoolAny([]string{"GESTUREDECK_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"GESTUREDECK_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"GESTUREDECK_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configuration values that would violate the core's
// documented parameter ranges before they ever reach a component.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block size must be positive, got %d", c.BlockSize)
	}
	if c.TargetLatencyMS <= 0 {
		return fmt.Errorf("target latency must be positive, got %d", c.TargetLatencyMS)
	}
	if c.DriftThresholdMS <= 0 {
		return fmt.Errorf("drift threshold must be positive, got %f", c.DriftThresholdMS)
	}
	if c.SyncMonitorIntervalMS <= 0 {
		return fmt.Errorf("sync monitor interval must be positive, got %d", c.SyncMonitorIntervalMS)
	}
	if c.AnalysisTimeoutMS <= 0 {
		return fmt.Errorf("analysis timeout must be positive, got %d", c.AnalysisTimeoutMS)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be within [0,1], got %f", c.TracingSampleRate)
	}
	if strings.EqualFold(c.Environment, "production") && c.RedisAddr == "" {
		// Production deployments are expected to run more than one instance;
		// nothing here is fatal, in-memory-only is always a valid degrade.
	}
	return nil
}

// AnalysisTimeout returns the configured analysis timeout as a duration.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutMS) * time.Millisecond
}

// SyncMonitorInterval returns the configured sync-monitor sampling interval.
func (c *Config) SyncMonitorInterval() time.Duration {
	return time.Duration(c.SyncMonitorIntervalMS) * time.Millisecond
}

func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
