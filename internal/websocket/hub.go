// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/craftstats/internal/dashboard"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ControllerFactory builds the dashboard controller for a new connection.
type ControllerFactory func(sink dashboard.ChartSink, sessionID string) *dashboard.Controller

// Hub maintains the set of active clients and broadcasts server-wide
// notices to them.
type Hub struct {
	clients       map[*Client]bool
	broadcast     chan Message
	Register      chan *Client
	Unregister    chan *Client
	newController ControllerFactory
	mu            sync.RWMutex
}

// NewHub creates a new Hub. newController may be nil, in which case clients
// answer every dashboard event with a NO_DASHBOARD error.
func NewHub(newController ControllerFactory) *Hub {
	return &Hub{
		broadcast:     make(chan Message, 256),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		newController: newController,
	}
}

// RunWithContext runs the hub until ctx is cancelled, then closes every
// client and returns ctx.Err(). It is designed for use with suture
// supervision.
//
// Events are taken in priority order: shutdown first, then client
// lifecycle, then broadcasts, so client state is always consistent before
// a message is delivered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Str("session_id", client.SessionID()).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.shutdown()
	metrics.WSConnections.Dec()
	logging.Info().
		Str("session_id", client.SessionID()).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// logGracefulShutdown closes every client and logs the shutdown. The
// context error is not logged as an error since cancellation is the
// expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClients returns the registered clients in id order. Must be called
// with mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers message to every client in id order. Clients
// whose send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if err := client.enqueue(message); err != nil {
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range toRemove {
		metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
		metrics.WSConnections.Dec()
		client.shutdown()
	}
}

// closeAllClients closes every client in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := h.sortedClients()
	for _, client := range clients {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		metrics.WSConnections.Dec()
		client.shutdown()
	}
}

// BroadcastJSON sends a message to all connected clients. It never blocks;
// the message is dropped when the broadcast queue is full.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastUpstreamStatus tells every dashboard the stats API circuit
// breaker moved from one state to another.
func (h *Hub) BroadcastUpstreamStatus(from, to string) {
	h.BroadcastJSON(MessageTypeUpstreamStatus, UpstreamStatusData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		From:      from,
		To:        to,
	})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
