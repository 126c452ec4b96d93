// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package models

import (
	"time"
)

// APIResponse is the envelope for every JSON response served by craftstats
// and for error frames pushed over the dashboard websocket.
//
//	{
//	  "status": "error",
//	  "error": {"code": "VALIDATION_ERROR", "message": "Granularity must be one of: ..."},
//	  "metadata": {"timestamp": "2026-10-15T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a machine-readable error.
//
// Codes in use: VALIDATION_ERROR, FETCH_ERROR, STALE_QUERY, NOT_LOADED,
// INTERNAL_ERROR, RATE_LIMIT_EXCEEDED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewSuccess wraps data in a success envelope.
func NewSuccess(data interface{}) APIResponse {
	return APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	}
}

// NewError wraps an APIError in an error envelope.
func NewError(code, message string, details map[string]interface{}) APIResponse {
	return APIResponse{
		Status:   "error",
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    &APIError{Code: code, Message: message, Details: details},
	}
}

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status          string  `json:"status"`
	Version         string  `json:"version"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	StatsAPIBreaker string  `json:"stats_api_breaker"`
	Sessions        int     `json:"sessions"`
}
