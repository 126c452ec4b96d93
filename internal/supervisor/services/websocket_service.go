// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package services

import (
	"context"
)

// ContextHub is satisfied by *websocket.Hub. The interface keeps this
// package free of the websocket and dashboard imports.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService runs the dashboard websocket hub under supervision.
// Every open dashboard session is closed when the service stops.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

// NewWebSocketHubService creates a new WebSocket hub service wrapper.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for the supervisor event log.
func (w *WebSocketHubService) String() string {
	return w.name
}
