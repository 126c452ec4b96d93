// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package statsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("stats API circuit breaker open")

// ErrRateLimited is returned after every retry of an HTTP 429 was used up.
var ErrRateLimited = errors.New("stats API rate limit exceeded")

// StatusError is a non-200 response from the statistics API.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Reason labels the error for metrics.
func (e *StatusError) Reason() string {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case e.StatusCode >= 500:
		return "status_5xx"
	default:
		return "status_4xx"
	}
}

// clientError reports whether the request itself was at fault. Those
// errors do not count against the circuit breaker.
func (e *StatusError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// requestError attaches a metrics reason to a transport or decode failure.
type requestError struct {
	reason string
	err    error
}

func (e *requestError) Error() string  { return e.err.Error() }
func (e *requestError) Unwrap() error  { return e.err }
func (e *requestError) Reason() string { return e.reason }

func classify(reason string, err error) error {
	if errors.Is(err, context.Canceled) {
		reason = "canceled"
	} else if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	return &requestError{reason: reason, err: err}
}

// countsAsFailure decides what the circuit breaker treats as an upstream
// failure. Cancellation and caller mistakes are not.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.clientError() {
		return false
	}
	return true
}
