// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/craftstats/internal/models"
)

// readyTimeout bounds the upstream ping made by the readiness probe.
const readyTimeout = 5 * time.Second

const breakerOpen = "open"

// Health reports process health without touching the network. The
// service is degraded while the stats API circuit breaker is open.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := models.HealthStatus{
		Status:          "healthy",
		Version:         h.version,
		UptimeSeconds:   time.Since(h.startTime).Seconds(),
		StatsAPIBreaker: "unconfigured",
	}
	if h.upstream == nil {
		health.Status = "degraded"
	} else {
		health.StatsAPIBreaker = h.upstream.State()
		if health.StatsAPIBreaker == breakerOpen {
			health.Status = "degraded"
		}
	}
	if h.wsHub != nil {
		health.Sessions = h.wsHub.GetClientCount()
	}

	resp := models.NewSuccess(health)
	respondJSON(w, http.StatusOK, &resp)
}

// HealthLive handles liveness probe requests. It answers 200 whenever the
// process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	resp := models.NewSuccess(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
	respondJSON(w, http.StatusOK, &resp)
}

// HealthReady handles readiness probe requests. It answers 503 unless the
// stats API responds to a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	upstreamReachable := false
	if h.upstream != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		upstreamReachable = h.upstream.Ping(ctx) == nil
		cancel()
	}

	statusCode := http.StatusOK
	status := "ready"
	if !upstreamReachable {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"stats_api_reachable": upstreamReachable,
			"ready_to_serve":      upstreamReachable,
			"uptime":              time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}
