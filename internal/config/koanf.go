// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/craftstats/internal/timeseries"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/craftstats/config.yaml",
	"/etc/craftstats/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		StatsAPI: StatsAPIConfig{
			BaseURL:             "http://127.0.0.1:8080",
			Timeout:             15 * time.Second,
			MaxRetries:          5,
			RetryBaseDelay:      time.Second,
			RequestsPerSecond:   20,
			Burst:               40,
			BreakerFailureRatio: 0.6,
			BreakerMinRequests:  10,
			BreakerTimeout:      30 * time.Second,
			BreakerInterval:     time.Minute,
			ProbeInterval:       15 * time.Second,
		},
		Engine: EngineConfig{
			MaxBuckets:        timeseries.DefaultMaxBuckets,
			MaxAxisPoints:     timeseries.DefaultMaxAxisPoints,
			RankDebounce:      400 * time.Millisecond,
			RankCacheCapacity: 4096,
			RankCacheTTL:      5 * time.Minute,
			LeaderboardLimit:  10,
			FetchTimeout:      30 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3860,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources:
//  1. Defaults
//  2. Config File (optional)
//  3. Environment Variables
//
// Precedence is ENV > File > Defaults. The result is validated before it
// is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// STATS_API_URL -> stats_api.base_url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps flat environment variable names to koanf paths.
var envMappings = map[string]string{
	"stats_api_url":                   "stats_api.base_url",
	"stats_api_key":                   "stats_api.api_key",
	"stats_api_timeout":               "stats_api.timeout",
	"stats_api_max_retries":           "stats_api.max_retries",
	"stats_api_retry_base_delay":      "stats_api.retry_base_delay",
	"stats_api_requests_per_second":   "stats_api.requests_per_second",
	"stats_api_burst":                 "stats_api.burst",
	"stats_api_breaker_failure_ratio": "stats_api.breaker_failure_ratio",
	"stats_api_breaker_min_requests":  "stats_api.breaker_min_requests",
	"stats_api_breaker_timeout":       "stats_api.breaker_timeout",
	"stats_api_breaker_interval":      "stats_api.breaker_interval",
	"stats_api_probe_interval":        "stats_api.probe_interval",

	"max_buckets":         "engine.max_buckets",
	"max_axis_points":     "engine.max_axis_points",
	"rank_debounce":       "engine.rank_debounce",
	"rank_cache_capacity": "engine.rank_cache_capacity",
	"rank_cache_ttl":      "engine.rank_cache_ttl",
	"leaderboard_limit":   "engine.leaderboard_limit",
	"fetch_timeout":       "engine.fetch_timeout",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unknown variables map to "" and are ignored by koanf.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
