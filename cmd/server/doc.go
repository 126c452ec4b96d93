// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

/*
Package main is the entry point for the craftstats server.

craftstats serves interactive Minecraft player statistics dashboards. Each
browser connects over a websocket and gets its own aggregation controller,
which fetches delta and running-total series from the statistics API,
densifies and bucketizes them for the visible window, applies unit and
percent conversions, and answers hover rank lookups through a debounced,
cached leaderboard query.

# Application Architecture

	RootSupervisor ("craftstats")
	├── SessionSupervisor ("session-layer")
	│   ├── WebSocket Hub (one dashboard controller per connection)
	│   └── Upstream Probe (stats API reachability)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (/ws, /api/health, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file and environment
 2. Logging: zerolog with JSON or console output
 3. Stats API client: rate limited, retried on 429, behind a circuit breaker
 4. WebSocket hub: breaker transitions are broadcast as upstream_status
 5. Supervisor tree and HTTP server

# Configuration

Priority: environment variables > config file > defaults.

	STATS_API_URL=http://stats:8080   # statistics API base URL
	STATS_API_KEY=<key>               # sent as X-API-Key
	STATS_API_PROBE_INTERVAL=15s      # 0 disables the background probe
	MAX_BUCKETS=1000                  # bucket cap per series
	RANK_DEBOUNCE=400ms               # hover quiet period before a rank lookup
	LEADERBOARD_LIMIT=10
	HTTP_PORT=3860
	CORS_ORIGINS=https://dash.example.com
	LOG_LEVEL=info                    # trace, debug, info, warn, error
	LOG_FORMAT=json                   # json or console

CONFIG_PATH points at a YAML file using the same keys in sections
(stats_api, engine, server, logging).

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
server.shutdown_timeout, the hub closes every dashboard, and in-flight
statistics fetches are aborted.

# Example Usage

	export STATS_API_URL=http://localhost:8080
	export LOG_FORMAT=console
	./craftstats
*/
package main
