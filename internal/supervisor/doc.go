// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

/*
Package supervisor provides process supervision for craftstats using suture v4.

# Overview

Long-running services are grouped into two layers:

	RootSupervisor ("craftstats")
	├── SessionSupervisor ("session-layer")
	│   ├── WebSocketHubService
	│   └── UpstreamProbeService (if stats_api.probe_interval > 0)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash of the hub restarts only the session layer; health and metrics
endpoints keep serving while dashboards reconnect.

The per-connection dashboard controllers are not supervised services.
They live and die with their websocket client.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}

	tree.AddSessionService(services.NewWebSocketHubService(hub))
	tree.AddSessionService(services.NewUpstreamProbeService(statsClient, cfg.StatsAPI.ProbeInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor stopped")
	}

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Above FailureThreshold the supervisor waits FailureBackoff before the next
restart. Defaults are suture's own: 5 failures, 30s decay, 15s backoff and
a 10s shutdown timeout per service.

Return behavior of a service:
  - nil: stopped cleanly, not restarted
  - error: crashed, restarted
  - ctx.Err(): shutdown requested

# Debugging Shutdown Issues

UnstoppedServiceReport lists services that ignored cancellation past the
shutdown timeout.
*/
package supervisor
