// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package statsclient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/craftstats/internal/config"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/models"
	"github.com/tomtom215/craftstats/internal/timeseries"
)

const breakerName = "stats-api"

// CircuitBreakerClient wraps Client with a circuit breaker.
//
// States:
//   - Closed: requests pass through, failures are counted
//   - Open: requests fail fast with ErrCircuitOpen until BreakerTimeout elapses
//   - Half-Open: a few trial requests decide whether to close again
//
// The breaker trips once BreakerMinRequests requests were seen in the
// current interval and the failure ratio reaches BreakerFailureRatio.
// Cancelled requests and 4xx responses other than 429 are not failures.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string

	listener atomic.Pointer[func(from, to string)]
}

// NewCircuitBreakerClient builds the client and its breaker from cfg.
func NewCircuitBreakerClient(cfg *config.StatsAPIConfig) *CircuitBreakerClient {
	return newCircuitBreakerClient(New(cfg), cfg)
}

func newCircuitBreakerClient(client *Client, cfg *config.StatsAPIConfig) *CircuitBreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio
	log := logging.WithComponent("stats-breaker")
	cbc := &CircuitBreakerClient{client: client, name: breakerName}

	cbc.cb = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= ratio
			if shouldTrip {
				log.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			log.Info().Str("from", fromStr).Str("to", toStr).Msg("State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
			if fn := cbc.listener.Load(); fn != nil {
				(*fn)(fromStr, toStr)
			}
		},

		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
	})

	return cbc
}

// OnStateChange registers fn to be called after every state transition,
// replacing any previous listener. fn runs on the goroutine of the request
// that caused the transition and must not block.
func (cbc *CircuitBreakerClient) OnStateChange(fn func(from, to string)) {
	cbc.listener.Store(&fn)
}

func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(cbc.cb.Counts().ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)
	return result, nil
}

// castResult converts the breaker's untyped result back to T.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// State returns "closed", "half-open" or "open".
func (cbc *CircuitBreakerClient) State() string {
	return stateToString(cbc.cb.State())
}

// Ping checks reachability through the breaker.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// FetchDeltaSeries calls Client.FetchDeltaSeries through the breaker.
func (cbc *CircuitBreakerClient) FetchDeltaSeries(ctx context.Context, params models.FetchParams) (timeseries.SparseSeries, error) {
	return castResult[timeseries.SparseSeries](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchDeltaSeries(ctx, params)
	}))
}

// FetchTotalSeries calls Client.FetchTotalSeries through the breaker.
func (cbc *CircuitBreakerClient) FetchTotalSeries(ctx context.Context, params models.FetchParams) (timeseries.SparseSeries, error) {
	return castResult[timeseries.SparseSeries](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchTotalSeries(ctx, params)
	}))
}

// FetchLeaderboardTotal calls Client.FetchLeaderboardTotal through the breaker.
func (cbc *CircuitBreakerClient) FetchLeaderboardTotal(ctx context.Context, params models.FetchParams) (*models.LeaderboardResponse, error) {
	return castResult[*models.LeaderboardResponse](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchLeaderboardTotal(ctx, params)
	}))
}
