// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/models"
	ws "github.com/tomtom215/craftstats/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type stubUpstream struct {
	state   string
	pingErr error
}

func (s *stubUpstream) Ping(context.Context) error { return s.pingErr }
func (s *stubUpstream) State() string              { return s.state }

func newTestRouter(upstream Upstream, hub *ws.Hub, origins ...string) http.Handler {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = origins
	mw := NewChiMiddleware(cfg)
	return NewRouter(NewHandler(upstream, hub, mw, "test"), mw).SetupChi()
}

func decodeResponse(t *testing.T, body io.Reader) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name        string
		upstream    Upstream
		wantStatus  string
		wantBreaker string
	}{
		{"breaker closed", &stubUpstream{state: "closed"}, "healthy", "closed"},
		{"breaker half-open", &stubUpstream{state: "half-open"}, "healthy", "half-open"},
		{"breaker open", &stubUpstream{state: "open"}, "degraded", "open"},
		{"no upstream", nil, "degraded", "unconfigured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.upstream, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			resp := decodeResponse(t, rec.Body)
			data, ok := resp.Data.(map[string]interface{})
			if !ok {
				t.Fatalf("data is %T", resp.Data)
			}
			if data["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", data["status"], tt.wantStatus)
			}
			if data["stats_api_breaker"] != tt.wantBreaker {
				t.Errorf("stats_api_breaker = %v, want %s", data["stats_api_breaker"], tt.wantBreaker)
			}
			if data["version"] != "test" {
				t.Errorf("version = %v, want test", data["version"])
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing security headers on health endpoint")
			}
		})
	}
}

func TestHealth_CountsSessions(t *testing.T) {
	hub := ws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	hub.Register <- ws.NewClient(hub, nil)
	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	router := newTestRouter(&stubUpstream{state: "closed"}, hub)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	data := decodeResponse(t, rec.Body).Data.(map[string]interface{})
	if data["sessions"] != float64(1) {
		t.Errorf("sessions = %v, want 1", data["sessions"])
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name     string
		upstream Upstream
		wantCode int
	}{
		{"upstream reachable", &stubUpstream{state: "closed"}, http.StatusOK},
		{"upstream failing", &stubUpstream{state: "closed", pingErr: errors.New("down")}, http.StatusServiceUnavailable},
		{"no upstream", nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.upstream, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter(nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestRouter(nil, nil)

	tests := []struct {
		method, path string
		wantCode     int
		wantError    string
	}{
		{http.MethodGet, "/nope", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/api/health/live", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			resp := decodeResponse(t, rec.Body)
			if resp.Error == nil || resp.Error.Code != tt.wantError {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantError)
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(nil, nil, "https://dash.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name          string
		corsOrigins   []string
		requestOrigin string
		want          bool
	}{
		{"missing origin rejected", []string{"*"}, "", false},
		{"wildcard allows any", []string{"*"}, "http://example.com", true},
		{"exact match", []string{"http://localhost:3857"}, "http://localhost:3857", true},
		{"second of several", []string{"http://localhost:3857", "http://example.com"}, "http://example.com", true},
		{"not listed", []string{"http://localhost:3857"}, "http://evil.com", false},
		{"empty allow list", nil, "http://localhost:3857", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChiMiddlewareConfig()
			cfg.CORSAllowedOrigins = tt.corsOrigins
			h := NewHandler(nil, nil, NewChiMiddleware(cfg), "test")

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			if got := h.checkWebSocketOrigin(req); got != tt.want {
				t.Errorf("checkWebSocketOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebSocket_NoHub(t *testing.T) {
	router := newTestRouter(nil, nil, "*")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebSocket_Session(t *testing.T) {
	hub := ws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	server := httptest.NewServer(newTestRouter(nil, hub, "http://dash.local"))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	t.Run("rejects foreign origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.local"}}
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		if err == nil {
			t.Fatal("expected handshake failure")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("handshake response = %v, want 403", resp)
		}
	})

	t.Run("allowed origin gets a session", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://dash.local"}}
		conn, _, err := websocket.DefaultDialer.Dial(url, header)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Type string `json:"type"`
			Data struct {
				SessionID string `json:"session_id"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read session frame: %v", err)
		}
		if frame.Type != ws.MessageTypeSession || frame.Data.SessionID == "" {
			t.Errorf("first frame = %+v, want a session frame", frame)
		}
	})
}
