// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
)

// maxProbeTimeout caps a single ping. Shorter intervals shorten it further.
const maxProbeTimeout = 5 * time.Second

// Pinger is satisfied by statsclient.CircuitBreakerClient.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamProbeService pings the statistics API on a fixed interval.
//
// Pings go through the circuit breaker, so an open breaker is retried in
// half-open state as soon as its timeout elapses and the resulting
// transition reaches the dashboards without any user query.
type UpstreamProbeService struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	name     string
	log      zerolog.Logger

	// reachable is only touched by the Serve goroutine
	reachable *bool
}

// NewUpstreamProbeService creates a probe. A non-positive interval
// disables it: Serve returns suture.ErrDoNotRestart at once.
func NewUpstreamProbeService(pinger Pinger, interval time.Duration) *UpstreamProbeService {
	timeout := maxProbeTimeout
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return &UpstreamProbeService{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		name:     "upstream-probe",
		log:      logging.WithComponent("upstream-probe"),
	}
}

// Serve implements suture.Service.
func (p *UpstreamProbeService) Serve(ctx context.Context) error {
	if p.interval <= 0 {
		p.log.Info().Msg("upstream probe disabled")
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *UpstreamProbeService) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(probeCtx)
	cancel()

	if ctx.Err() != nil {
		// shutting down; the failed ping says nothing about upstream
		return
	}

	ok := err == nil
	if ok {
		metrics.UpstreamProbes.WithLabelValues("ok").Inc()
		metrics.UpstreamReachable.Set(1)
	} else {
		metrics.UpstreamProbes.WithLabelValues("error").Inc()
		metrics.UpstreamReachable.Set(0)
	}

	if p.reachable != nil && *p.reachable == ok {
		return
	}
	switch {
	case ok:
		p.log.Info().Msg("statistics API reachable")
	case p.reachable == nil:
		p.log.Warn().Err(err).Msg("statistics API unreachable at startup")
	default:
		p.log.Warn().Err(err).Msg("statistics API became unreachable")
	}
	p.reachable = &ok
}

// String implements fmt.Stringer for the supervisor event log.
func (p *UpstreamProbeService) String() string {
	return p.name
}
