// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package statsclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/models"
)

// TestCircuitBreaker_OpensAfterFailures verifies the circuit opens once the
// minimum request count and failure ratio are reached.
func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0
	cbc := NewCircuitBreakerClient(cfg)

	if cbc.cb.State() != gobreaker.StateClosed {
		t.Fatalf("initial state = %v, want closed", cbc.cb.State())
	}

	for i := 0; i < 10; i++ {
		if _, err := cbc.FetchDeltaSeries(context.Background(), models.FetchParams{}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if cbc.State() != "open" {
		t.Fatalf("State() = %q, want open", cbc.State())
	}

	_, err := cbc.FetchDeltaSeries(context.Background(), models.FetchParams{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if got := atomic.LoadInt32(&calls); got != 10 {
		t.Errorf("upstream calls = %d, want 10 (open circuit must not call through)", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues(breakerName)); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
}

// TestCircuitBreaker_RequiresMinimumRequests verifies failures below the
// minimum request count never trip the breaker.
func TestCircuitBreaker_RequiresMinimumRequests(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cbc := newCircuitBreakerClient(New(cfg), cfg)

	for i := 0; i < 9; i++ {
		_, _ = cbc.execute(func() (interface{}, error) {
			return nil, errors.New("simulated failure")
		})
	}
	if cbc.State() != "closed" {
		t.Errorf("State() = %q after 9 failures, want closed", cbc.State())
	}
}

// TestCircuitBreaker_ClientErrorsDoNotTrip verifies 4xx responses are not
// counted as upstream failures.
func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "unknown metric")
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cbc := NewCircuitBreakerClient(cfg)

	for i := 0; i < 15; i++ {
		_, err := cbc.FetchTotalSeries(context.Background(), models.FetchParams{})
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			t.Fatalf("call %d: error = %v, want StatusError 400", i, err)
		}
	}
	if cbc.State() != "closed" {
		t.Errorf("State() = %q, want closed", cbc.State())
	}
}

func TestCircuitBreaker_PassesResultsThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stats/leaderboard":
			_, _ = io.WriteString(w, `{"at":5,"total":7,"entries":[]}`)
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		default:
			_, _ = io.WriteString(w, `{"series":{"a":[{"timestamp":1,"value":2}]}}`)
		}
	}))
	defer server.Close()

	cbc := NewCircuitBreakerClient(testConfig(server.URL))
	ctx := context.Background()

	if err := cbc.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	delta, err := cbc.FetchDeltaSeries(ctx, models.FetchParams{})
	if err != nil || len(delta["a"]) != 1 {
		t.Errorf("FetchDeltaSeries() = %v, %v", delta, err)
	}
	total, err := cbc.FetchTotalSeries(ctx, models.FetchParams{})
	if err != nil || len(total["a"]) != 1 {
		t.Errorf("FetchTotalSeries() = %v, %v", total, err)
	}
	lb, err := cbc.FetchLeaderboardTotal(ctx, models.FetchParams{})
	if err != nil || lb.Total != 7 {
		t.Errorf("FetchLeaderboardTotal() = %+v, %v", lb, err)
	}
}

func TestCircuitBreaker_StateHelpers(t *testing.T) {
	tests := []struct {
		state    gobreaker.State
		wantF    float64
		wantName string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
		{gobreaker.State(99), -1, "unknown"},
	}
	for _, tt := range tests {
		if got := stateToFloat(tt.state); got != tt.wantF {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.wantF)
		}
		if got := stateToString(tt.state); got != tt.wantName {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.wantName)
		}
	}
}

func TestCastResult(t *testing.T) {
	if _, err := castResult[int]("nope", nil); err == nil {
		t.Error("castResult should reject a mismatched type")
	}
	if v, err := castResult[int](7, nil); err != nil || v != 7 {
		t.Errorf("castResult() = %v, %v", v, err)
	}
	sentinel := errors.New("x")
	if _, err := castResult[int](nil, sentinel); !errors.Is(err, sentinel) {
		t.Errorf("castResult() error = %v, want sentinel", err)
	}
}

// TestCircuitBreaker_StateListener verifies the registered listener sees
// every transition.
func TestCircuitBreaker_StateListener(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cbc := newCircuitBreakerClient(New(cfg), cfg)

	var transitions []string
	cbc.OnStateChange(func(from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	for i := 0; i < 10; i++ {
		_, _ = cbc.execute(func() (interface{}, error) {
			return nil, errors.New("simulated failure")
		})
	}

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("transitions = %v, want [closed->open]", transitions)
	}
}
