// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

/*
Package services provides suture.Service wrappers for craftstats components.

Each wrapper translates a component's lifecycle into suture's
Serve(ctx) error and names itself through fmt.Stringer for the supervisor
event log.

# Available Services

HTTP Server (HTTPServerService):
  - Runs ListenAndServe and calls Shutdown with a timeout on cancel
  - http.ErrServerClosed is not treated as a failure

WebSocket Hub (WebSocketHubService):
  - Delegates to Hub.RunWithContext, which closes every dashboard on exit

Upstream Probe (UpstreamProbeService):
  - Pings the statistics API on a fixed interval through the circuit
    breaker, so an open breaker moves to half-open and back to closed
    without waiting for user traffic
  - Exposes reachability as the craftstats_upstream_reachable gauge

# Error Semantics

  - ctx.Err(): graceful shutdown
  - wrapped error: failure, suture restarts the service
  - suture.ErrDoNotRestart: the probe is disabled by configuration
*/
package services
