// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package websocket

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/craftstats/internal/dashboard"
)

// Message types for WebSocket communication
const (
	MessageTypeQuery      = "query"
	MessageTypeZoom       = "zoom"
	MessageTypeClick      = "click"
	MessageTypeConversion = "conversion"
	MessageTypePercent    = "percent"
	MessageTypePing       = "ping"

	MessageTypePong           = "pong"
	MessageTypeSession        = "session"
	MessageTypeChartOption    = "chart_option"
	MessageTypeError          = "error"
	MessageTypeUpstreamStatus = "upstream_status"
)

// Error codes carried by error frames.
const (
	ErrorCodeBadFrame       = "BAD_FRAME"
	ErrorCodeUnknownType    = "UNKNOWN_MESSAGE_TYPE"
	ErrorCodeValidation     = "VALIDATION_ERROR"
	ErrorCodeNotLoaded      = "NOT_LOADED"
	ErrorCodeFetch          = "FETCH_ERROR"
	ErrorCodeInternal       = "INTERNAL_ERROR"
	ErrorCodeNoDashboard    = "NO_DASHBOARD"
	ErrorCodeSessionClosing = "SESSION_CLOSED"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage defers decoding of Data until the type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChartOptionData is the payload of a chart_option frame.
type ChartOptionData struct {
	Replace bool                `json:"replace"`
	Option  dashboard.ChartSpec `json:"option"`
}

// ClickData is the payload of a click frame.
type ClickData struct {
	At int64 `json:"at" validate:"gte=0"`
}

// SessionData is the payload of the session frame sent on connect.
type SessionData struct {
	SessionID string `json:"session_id"`
}

// UpstreamStatusData is the payload of an upstream_status broadcast.
type UpstreamStatusData struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
