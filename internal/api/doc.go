// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

/*
Package api provides the HTTP surface of the craftstats server.

The aggregation engine itself lives in internal/dashboard and is driven
over a websocket; this package only exposes that websocket plus the
operational endpoints around it.

Routes:

  - GET /api/health: process health, circuit breaker state, session count
  - GET /api/health/live: liveness probe
  - GET /api/health/ready: readiness probe, pings the stats API
  - GET /ws: upgrades to a dashboard session (see internal/websocket)
  - GET /metrics: Prometheus exposition

Middleware Stack:

	RequestID -> RealIP -> Recoverer -> CORS -> PrometheusMetrics -> per-group rate limit

Every JSON response uses the models.APIResponse envelope.

Usage Example:

	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server))
	handler := api.NewHandler(statsClient, hub, mw, version)
	srv := &http.Server{
	    Addr:    cfg.Server.Addr(),
	    Handler: api.NewRouter(handler, mw).SetupChi(),
	}

WebSocket connections must carry an Origin header that matches the CORS
allow list; "*" allows any origin.
*/
package api
