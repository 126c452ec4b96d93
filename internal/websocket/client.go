// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package websocket

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/craftstats/internal/dashboard"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/metrics"
	"github.com/tomtom215/craftstats/internal/models"
	"github.com/tomtom215/craftstats/internal/timeseries"
	"github.com/tomtom215/craftstats/internal/validation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	// ErrSendBufferFull is returned by SetOption when the client is not
	// draining its frames.
	ErrSendBufferFull = errors.New("websocket: send buffer full")
	// ErrClientClosed is returned by SetOption after the client shut down.
	ErrClientClosed = errors.New("websocket: client closed")
)

// clientIDCounter gives clients a stable sort order for broadcasts.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and one dashboard
// controller.
type Client struct {
	id        uint64
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	send      chan Message
	ctrl      *dashboard.Controller
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed and the close of send.
	mu     sync.Mutex
	closed bool
}

// NewClient creates a Client and its dashboard controller.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(logging.ContextWithSessionID(context.Background(), sessionID))
	c := &Client{
		id:        clientIDCounter.Add(1),
		sessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan Message, sendBufferSize),
		log:       logging.WithComponent("websocket").With().Str("session_id", sessionID).Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	if hub != nil && hub.newController != nil {
		c.ctrl = hub.newController(c, sessionID)
	}
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// SessionID returns the id attached to this client's logs.
func (c *Client) SessionID() string {
	return c.sessionID
}

// SetOption implements dashboard.ChartSink by queueing a chart_option
// frame. It never blocks.
func (c *Client) SetOption(spec dashboard.ChartSpec, replace bool) error {
	return c.enqueue(Message{
		Type: MessageTypeChartOption,
		Data: ChartOptionData{Replace: replace, Option: spec},
	})
}

func (c *Client) enqueue(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// shutdown closes the send channel, which makes writePump send a close
// frame, then releases the controller. Safe to call more than once.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.cancel()
	if c.ctrl != nil {
		c.ctrl.Close()
	}
}

// readPump decodes frames from the connection and dispatches them.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.WSMessagesReceived.WithLabelValues("invalid").Inc()
			c.sendError("", ErrorCodeBadFrame, "frame is not valid JSON", nil)
			continue
		}
		metrics.WSMessagesReceived.WithLabelValues(msg.Type).Inc()
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg inboundMessage) {
	if msg.Type == MessageTypePing {
		c.sendControl(Message{Type: MessageTypePong})
		return
	}

	if c.ctrl == nil {
		switch msg.Type {
		case MessageTypeQuery, MessageTypeZoom, MessageTypeClick, MessageTypeConversion, MessageTypePercent:
			c.sendError(msg.Type, ErrorCodeNoDashboard, "no dashboard attached to this connection", nil)
			return
		}
	}

	switch msg.Type {
	case MessageTypeQuery:
		var q dashboard.Query
		if !c.decode(msg, &q) {
			return
		}
		// Queries block on the network; run them aside so a newer query can
		// supersede this one.
		go func() {
			c.report(msg.Type, c.ctrl.OnEntitySelectionChanged(c.ctx, q))
		}()

	case MessageTypeZoom:
		var z dashboard.ZoomEvent
		if c.decode(msg, &z) {
			c.report(msg.Type, c.ctrl.OnViewportChanged(z))
		}

	case MessageTypeClick:
		var click ClickData
		if !c.decode(msg, &click) {
			return
		}
		if err := validation.Err(validation.ValidateStruct(click)); err != nil {
			c.report(msg.Type, err)
			return
		}
		c.report(msg.Type, c.ctrl.OnPointClicked(click.At))

	case MessageTypeConversion:
		var spec timeseries.ConversionSpec
		if c.decode(msg, &spec) {
			c.report(msg.Type, c.ctrl.OnConversionSpecChanged(spec))
		}

	case MessageTypePercent:
		var spec timeseries.PercentSpec
		if c.decode(msg, &spec) {
			c.report(msg.Type, c.ctrl.OnPercentSpecChanged(spec))
		}

	default:
		c.sendError(msg.Type, ErrorCodeUnknownType, "unknown message type", nil)
	}
}

func (c *Client) decode(msg inboundMessage, v interface{}) bool {
	if len(msg.Data) == 0 || bytes.Equal(msg.Data, []byte("null")) {
		c.sendError(msg.Type, ErrorCodeBadFrame, "missing data", nil)
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(msg.Type, ErrorCodeBadFrame, "invalid data: "+err.Error(), nil)
		return false
	}
	return true
}

// report turns a controller error into an error frame. Superseded queries
// are expected and produce nothing.
func (c *Client) report(request string, err error) {
	if err == nil || errors.Is(err, dashboard.ErrStaleQuery) {
		return
	}

	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		c.sendError(request, apiErr.Code, apiErr.Message, apiErr.Details)
	case errors.Is(err, dashboard.ErrNotLoaded):
		c.sendError(request, ErrorCodeNotLoaded, err.Error(), nil)
	case errors.Is(err, dashboard.ErrClosed):
		c.sendError(request, ErrorCodeSessionClosing, err.Error(), nil)
	case request == MessageTypeQuery:
		c.sendError(request, ErrorCodeFetch, err.Error(), nil)
	default:
		c.sendError(request, ErrorCodeInternal, err.Error(), nil)
	}
}

func (c *Client) sendError(request, code, message string, details map[string]interface{}) {
	metrics.WSErrors.WithLabelValues(code).Inc()
	if details == nil {
		details = map[string]interface{}{}
	}
	if request != "" {
		details["request"] = request
	}
	c.sendControl(Message{
		Type: MessageTypeError,
		Data: models.APIError{Code: code, Message: message, Details: details},
	})
}

// sendControl queues a frame, logging instead of failing when the buffer
// is full.
func (c *Client) sendControl(msg Message) {
	if err := c.enqueue(msg); err != nil && !errors.Is(err, ErrClientClosed) {
		c.log.Warn().Err(err).Str("message_type", msg.Type).Msg("dropping frame")
	}
}

// writePump writes queued frames and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// shutdown closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.log.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				metrics.WSErrors.WithLabelValues("marshal").Inc()
				c.log.Error().Err(err).Str("message_type", message.Type).Msg("failed to marshal message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				c.log.Error().Err(err).Msg("failed to write message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start sends the session frame and begins reading and writing.
func (c *Client) Start() {
	c.sendControl(Message{Type: MessageTypeSession, Data: SessionData{SessionID: c.sessionID}})
	go c.writePump()
	go c.readPump()
}
