// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

/*
Package websocket connects browser dashboards to their server-side
controllers.

Every connection gets its own dashboard.Controller. The client is the
controller's ChartSink: rendered chart options are pushed to the browser as
chart_option frames, and chart events coming back from the browser are
validated and dispatched to the controller.

Key Components:

  - Hub: tracks connected clients and broadcasts server-wide notices
  - Client: one connection, its controller and its read/write goroutines
  - Message: the JSON frame exchanged in both directions

Inbound Message Types:

  - query: dashboard.Query, runs a new fetch
  - zoom: dashboard.ZoomEvent, re-renders the visible window
  - click: {"at": unix seconds}, pins the leaderboard instant
  - conversion: timeseries.ConversionSpec
  - percent: timeseries.PercentSpec
  - ping: answered with pong

Outbound Message Types:

  - session: sent once on connect with the session id used in logs
  - chart_option: {"replace": bool, "option": dashboard.ChartSpec}
  - error: models.APIError, with details.request naming the failed frame
  - upstream_status: broadcast when the stats API circuit breaker changes state
  - pong

Usage:

	hub := websocket.NewHub(func(sink dashboard.ChartSink, sessionID string) *dashboard.Controller {
	    opts := dashboard.OptionsFromConfig(&cfg.Engine)
	    opts.SessionID = sessionID
	    return dashboard.NewController(statsClient, sink, opts)
	})
	go hub.RunWithContext(ctx)

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
	    conn, err := upgrader.Upgrade(w, r, nil)
	    if err != nil {
	        return
	    }
	    client := websocket.NewClient(hub, conn)
	    hub.Register <- client
	    client.Start()
	})

Connection Lifecycle:

 1. Client connects via HTTP upgrade and is registered with the hub
 2. The client sends a session frame naming its session id
 3. Queries run on their own goroutine so a newer query can supersede them
 4. On disconnect the hub unregisters the client, which closes its
    controller and cancels any in-flight fetch

Timeouts:

  - writeWait: 10 seconds per frame
  - pongWait: 60 seconds without a pong closes the connection
  - pingPeriod: 54 seconds
  - maxMessageSize: 64 KB per inbound frame
*/
package websocket
