// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

// Package statsclient talks to the statistics REST API that stores sampled
// Minecraft player statistics.
//
// Endpoints:
//   - GET /api/stats/delta: per-interval increments per player
//   - GET /api/stats/total: cumulative totals per player
//   - GET /api/stats/leaderboard: ranked totals at one instant plus the server-wide sum
//
// Resilience:
//   - Client side pacing with golang.org/x/time/rate
//   - Exponential backoff on HTTP 429 (base, 2x, 4x ...) honouring Retry-After
//   - A gobreaker circuit breaker (CircuitBreakerClient) in front of the client
//
// Both Client and CircuitBreakerClient are safe for concurrent use.
package statsclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/craftstats/internal/config"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/models"
	"github.com/tomtom215/craftstats/internal/timeseries"
)

// Endpoint names, also used as metric labels.
const (
	EndpointDelta       = "delta"
	EndpointTotal       = "total"
	EndpointLeaderboard = "leaderboard"
)

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 64 * 1024

// readBodyForError reads at most 64KB of r for error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Client is the plain HTTP client for the statistics API.
type Client struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// New creates a client from cfg.
func New(cfg *config.StatsAPIConfig) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// FetchDeltaSeries returns per-interval increments for the selected players.
func (c *Client) FetchDeltaSeries(ctx context.Context, params models.FetchParams) (timeseries.SparseSeries, error) {
	var out models.SeriesResponse
	if err := c.get(ctx, EndpointDelta, params, &out); err != nil {
		return nil, err
	}
	if out.Series == nil {
		return timeseries.SparseSeries{}, nil
	}
	return out.Series.Normalize(), nil
}

// FetchTotalSeries returns cumulative totals for the selected players.
func (c *Client) FetchTotalSeries(ctx context.Context, params models.FetchParams) (timeseries.SparseSeries, error) {
	var out models.SeriesResponse
	if err := c.get(ctx, EndpointTotal, params, &out); err != nil {
		return nil, err
	}
	if out.Series == nil {
		return timeseries.SparseSeries{}, nil
	}
	return out.Series.Normalize(), nil
}

// FetchLeaderboardTotal returns the leaderboard at params.At. Total covers
// every player, not just the returned entries.
func (c *Client) FetchLeaderboardTotal(ctx context.Context, params models.FetchParams) (*models.LeaderboardResponse, error) {
	var out models.LeaderboardResponse
	if err := c.get(ctx, EndpointLeaderboard, params, &out); err != nil {
		return nil, err
	}
	if out.Entries == nil {
		out.Entries = []models.RankEntry{}
	}
	return &out, nil
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequestWithRateLimit(ctx, "ping", c.baseURL+"/api/health")
	if err != nil {
		return fmt.Errorf("failed to ping stats API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: "ping", StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}
	return nil
}

// get performs one API call, records its duration and decodes the body.
func (c *Client) get(ctx context.Context, endpoint string, params models.FetchParams, result interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.RecordFetch(endpoint, time.Since(start), err) }()

	reqURL := fmt.Sprintf("%s/api/stats/%s?%s", c.baseURL, endpoint, encodeParams(params).Encode())

	resp, err := c.doRequestWithRateLimit(ctx, endpoint, reqURL)
	if err != nil {
		return fmt.Errorf("failed to make %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return classify("decode", fmt.Errorf("failed to decode %s response: %w", endpoint, err))
	}
	return nil
}

// doRequestWithRateLimit waits for the local limiter, then performs the
// request, retrying HTTP 429 with exponential backoff.
func (c *Client) doRequestWithRateLimit(ctx context.Context, endpoint, reqURL string) (*http.Response, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classify("canceled", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, classify("transport", fmt.Errorf("HTTP request failed: %w", err))
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		metrics.StatsFetchRetries.WithLabelValues(endpoint).Inc()
		logging.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Stats API rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, classify("canceled", ctx.Err())
		}
	}

	return nil, &requestError{
		reason: "rate_limited",
		err:    fmt.Errorf("%w after %d retries (HTTP 429)", ErrRateLimited, c.maxRetries),
	}
}

// encodeParams renders FetchParams as query parameters. Lists are comma
// separated.
func encodeParams(p models.FetchParams) url.Values {
	q := url.Values{}
	if len(p.EntityIDs) > 0 {
		q.Set("players", strings.Join(p.EntityIDs, ","))
	}
	if len(p.MetricIDs) > 0 {
		q.Set("metrics", strings.Join(p.MetricIDs, ","))
	}
	if len(p.SourceIDs) > 0 {
		q.Set("sources", strings.Join(p.SourceIDs, ","))
	}
	if p.Granularity != "" {
		q.Set("granularity", p.Granularity.String())
	}
	if p.Start != nil {
		q.Set("start", strconv.FormatInt(*p.Start, 10))
	}
	if p.End != nil {
		q.Set("end", strconv.FormatInt(*p.End, 10))
	}
	if p.At != nil {
		q.Set("at", strconv.FormatInt(*p.At, 10))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}
