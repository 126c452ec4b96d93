// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/craftstats/internal/logging"
	ws "github.com/tomtom215/craftstats/internal/websocket"
)

// Upstream is the view of the statistics API the health endpoints need.
// statsclient.CircuitBreakerClient satisfies it.
type Upstream interface {
	Ping(ctx context.Context) error
	State() string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket upgrade
//   - handlers_helpers.go: JSON response helpers
//   - handlers_health.go: health and readiness endpoints
type Handler struct {
	upstream  Upstream
	wsHub     *ws.Hub
	origins   *ChiMiddleware
	version   string
	startTime time.Time
}

// NewHandler creates a new API handler.
//
// upstream and wsHub may be nil: the health endpoints then report the
// service as degraded and /ws answers 503.
func NewHandler(upstream Upstream, wsHub *ws.Hub, mw *ChiMiddleware, version string) *Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Handler{
		upstream:  upstream,
		wsHub:     wsHub,
		origins:   mw,
		version:   version,
		startTime: time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against the
// CORS allow list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin; an empty one would bypass CORS
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.origins.AllowsOrigin(origin) {
		return true
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and binds it to a new dashboard
// controller.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	select {
	case h.wsHub.Register <- client:
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	client.Start()
}
