// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

/*
Package middleware provides HTTP middleware for the craftstats server.

Key Components:

  - Request ID: UUID-based request tracking, propagated into the logging
    context together with a correlation id
  - Prometheus Metrics: request count, latency and in-flight gauge, labelled
    by chi route pattern

Both middlewares use the standard func(http.Handler) http.Handler shape and
are mounted on the chi router:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper implements http.Hijacker, so websocket upgrades work
behind it.

See Also:

  - internal/api: router and handlers
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
