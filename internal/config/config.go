// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package config loads craftstats configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (config.yaml, /etc/craftstats/config.yaml or CONFIG_PATH)
//  3. Environment Variables: override any setting
//
// Sections:
//   - stats_api: upstream statistics API connection, retry and circuit breaker
//   - engine: aggregation limits, rank lookup debounce and cache sizing
//   - server: HTTP/WebSocket listener, CORS and rate limiting
//   - logging: zerolog level and output format
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	client := statsclient.New(cfg.StatsAPI)
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	StatsAPI StatsAPIConfig `koanf:"stats_api"`
	Engine   EngineConfig   `koanf:"engine"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// StatsAPIConfig describes the upstream statistics API.
//
// The API serves three endpoints: /api/stats/delta, /api/stats/total and
// /api/stats/leaderboard. Requests are rate limited client side, retried
// with exponential backoff on HTTP 429, and guarded by a circuit breaker.
type StatsAPIConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries        int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gte=1"`

	// Circuit breaker: trips when at least BreakerMinRequests were seen in
	// the current interval and the failure ratio reaches BreakerFailureRatio.
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests" validate:"gte=1"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerInterval     time.Duration `koanf:"breaker_interval" validate:"gte=0"`

	// ProbeInterval is how often the background probe pings the API. Zero
	// disables the probe.
	ProbeInterval time.Duration `koanf:"probe_interval" validate:"gte=0"`
}

// EngineConfig bounds the aggregation engine.
type EngineConfig struct {
	// MaxBuckets caps the number of buckets a bucketized series may contain.
	MaxBuckets int `koanf:"max_buckets" validate:"gte=1,lte=100000"`
	// MaxAxisPoints caps the regular grid produced by densification.
	MaxAxisPoints int `koanf:"max_axis_points" validate:"gte=2"`
	// RankDebounce is the quiet period before a hover rank lookup fires.
	RankDebounce time.Duration `koanf:"rank_debounce" validate:"gte=0"`
	// RankCacheCapacity caps cached leaderboard lookups per dashboard session.
	RankCacheCapacity int `koanf:"rank_cache_capacity" validate:"gte=1"`
	// RankCacheTTL expires cached leaderboard answers so totals near the
	// live edge pick up late samples. 0 disables expiry.
	RankCacheTTL time.Duration `koanf:"rank_cache_ttl" validate:"gte=0"`
	// LeaderboardLimit is the number of rows requested per rank lookup.
	LeaderboardLimit int `koanf:"leaderboard_limit" validate:"gte=1,lte=1000"`
	// FetchTimeout bounds one selection change's concurrent fetches.
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"loglevel"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
