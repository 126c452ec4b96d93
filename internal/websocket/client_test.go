// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/craftstats/internal/dashboard"
	"github.com/tomtom215/craftstats/internal/models"
	"github.com/tomtom215/craftstats/internal/timeseries"
)

type stubFetcher struct{}

func (stubFetcher) FetchDeltaSeries(context.Context, models.FetchParams) (timeseries.SparseSeries, error) {
	return timeseries.SparseSeries{
		"alice": {{Timestamp: 0, Value: 10}, {Timestamp: 600, Value: 5}},
		"bob":   {{Timestamp: 0, Value: 3}},
	}, nil
}

func (stubFetcher) FetchTotalSeries(context.Context, models.FetchParams) (timeseries.SparseSeries, error) {
	return timeseries.SparseSeries{
		"alice": {{Timestamp: 0, Value: 10}, {Timestamp: 600, Value: 15}},
		"bob":   {{Timestamp: 0, Value: 3}},
	}, nil
}

func (stubFetcher) FetchLeaderboardTotal(_ context.Context, p models.FetchParams) (*models.LeaderboardResponse, error) {
	return nil, errors.New("leaderboard unavailable")
}

func stubFactory(sink dashboard.ChartSink, sessionID string) *dashboard.Controller {
	return dashboard.NewController(stubFetcher{}, sink, dashboard.Options{
		SessionID: sessionID,
		// Keep rank lookups from firing during a test.
		RankDebounce: time.Hour,
	})
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// setupDashboardServer starts a hub and a server upgrading every request
// into a registered client.
func setupDashboardServer(t *testing.T, factory ControllerFactory) (*Hub, *httptest.Server) {
	t.Helper()
	hub := setupHub(t, factory)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(server.Close)
	return hub, server
}

// dialWebSocket connects and consumes the session frame.
func dialWebSocket(t *testing.T, server *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	f := readFrame(t, conn)
	if f.Type != MessageTypeSession {
		t.Fatalf("first frame = %q, want session", f.Type)
	}
	var session SessionData
	if err := json.Unmarshal(f.Data, &session); err != nil || session.SessionID == "" {
		t.Fatalf("bad session frame: %s (%v)", f.Data, err)
	}
	return conn, session.SessionID
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	payload, err := MarshalMessage(Message{Type: msgType, Data: data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readChartOption(t *testing.T, conn *websocket.Conn) ChartOptionData {
	t.Helper()
	f := readFrame(t, conn)
	if f.Type != MessageTypeChartOption {
		t.Fatalf("frame type = %q (%s), want chart_option", f.Type, f.Data)
	}
	var opt ChartOptionData
	if err := json.Unmarshal(f.Data, &opt); err != nil {
		t.Fatalf("decode chart option: %v", err)
	}
	return opt
}

func readError(t *testing.T, conn *websocket.Conn) models.APIError {
	t.Helper()
	f := readFrame(t, conn)
	if f.Type != MessageTypeError {
		t.Fatalf("frame type = %q (%s), want error", f.Type, f.Data)
	}
	var apiErr models.APIError
	if err := json.Unmarshal(f.Data, &apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return apiErr
}

func testQuery() dashboard.Query {
	start, end := int64(0), int64(600)
	return dashboard.Query{
		EntityIDs:   []string{"alice", "bob"},
		MetricIDs:   []string{"mined"},
		Granularity: timeseries.Granularity10m,
		Start:       &start,
		End:         &end,
	}
}

func TestClient_Constants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	if maxMessageSize != 64*1024 {
		t.Errorf("maxMessageSize = %d, want 64KB", maxMessageSize)
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub(stubFactory)
	a, b := NewClient(hub, nil), NewClient(hub, nil)
	defer a.shutdown()
	defer b.shutdown()

	if a.ctrl == nil {
		t.Fatal("controller not created")
	}
	if a.ID() >= b.ID() {
		t.Errorf("client ids not increasing: %d, %d", a.ID(), b.ID())
	}
	if a.SessionID() == "" || a.SessionID() == b.SessionID() {
		t.Errorf("session ids must be unique, got %q and %q", a.SessionID(), b.SessionID())
	}
	if cap(a.send) != sendBufferSize {
		t.Errorf("send capacity = %d, want %d", cap(a.send), sendBufferSize)
	}
}

func TestClient_SetOption_BufferFull(t *testing.T) {
	c := NewClient(NewHub(nil), nil)
	for i := 0; i < sendBufferSize; i++ {
		if err := c.SetOption(dashboard.ChartSpec{}, false); err != nil {
			t.Fatalf("SetOption %d: %v", i, err)
		}
	}
	if err := c.SetOption(dashboard.ChartSpec{}, false); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("SetOption on full buffer = %v, want ErrSendBufferFull", err)
	}
}

func TestClient_QueryThenZoom(t *testing.T) {
	_, server := setupDashboardServer(t, stubFactory)
	conn, _ := dialWebSocket(t, server)

	writeFrame(t, conn, MessageTypeQuery, testQuery())
	opt := readChartOption(t, conn)
	if !opt.Replace {
		t.Error("query result must replace the chart")
	}
	if len(opt.Option.Delta) != 2 {
		t.Fatalf("delta series = %d, want 2", len(opt.Option.Delta))
	}
	if opt.Option.KPIs.WindowDeltaSum != 18 {
		t.Errorf("WindowDeltaSum = %v, want 18", opt.Option.KPIs.WindowDeltaSum)
	}

	writeFrame(t, conn, MessageTypeZoom, dashboard.ZoomEvent{Start: 0, End: 599})
	opt = readChartOption(t, conn)
	if opt.Replace {
		t.Error("zoom must not replace the chart")
	}
	if opt.Option.Viewport != (timeseries.Window{Start: 0, End: 599}) {
		t.Errorf("viewport = %+v, want [0,599]", opt.Option.Viewport)
	}
	if opt.Option.KPIs.WindowDeltaSum != 13 {
		t.Errorf("WindowDeltaSum = %v, want 13", opt.Option.KPIs.WindowDeltaSum)
	}

	writeFrame(t, conn, MessageTypeConversion, timeseries.ConversionSpec{Enabled: true, From: "cm", To: "m"})
	opt = readChartOption(t, conn)
	if opt.Option.Unit != "meters" {
		t.Errorf("unit = %q, want meters", opt.Option.Unit)
	}
}

func TestClient_ErrorFrames(t *testing.T) {
	_, server := setupDashboardServer(t, stubFactory)
	conn, _ := dialWebSocket(t, server)

	tests := []struct {
		name     string
		send     func()
		wantCode string
	}{
		{
			name:     "zoom before query",
			send:     func() { writeFrame(t, conn, MessageTypeZoom, dashboard.ZoomEvent{Start: 0, End: 10}) },
			wantCode: ErrorCodeNotLoaded,
		},
		{
			name:     "invalid zoom range",
			send:     func() { writeFrame(t, conn, MessageTypeZoom, dashboard.ZoomEvent{Start: 10, End: 0}) },
			wantCode: ErrorCodeValidation,
		},
		{
			name:     "query without metrics",
			send:     func() { writeFrame(t, conn, MessageTypeQuery, dashboard.Query{EntityIDs: []string{"a"}, Granularity: "1h"}) },
			wantCode: ErrorCodeValidation,
		},
		{
			name:     "unknown type",
			send:     func() { writeFrame(t, conn, "teleport", nil) },
			wantCode: ErrorCodeUnknownType,
		},
		{
			name: "not json",
			send: func() {
				if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
					t.Fatal(err)
				}
			},
			wantCode: ErrorCodeBadFrame,
		},
		{
			name:     "missing data",
			send:     func() { writeFrame(t, conn, MessageTypeClick, nil) },
			wantCode: ErrorCodeBadFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			if got := readError(t, conn); got.Code != tt.wantCode {
				t.Errorf("code = %q (%s), want %q", got.Code, got.Message, tt.wantCode)
			}
		})
	}
}

func TestClient_PingPong(t *testing.T) {
	_, server := setupDashboardServer(t, stubFactory)
	conn, _ := dialWebSocket(t, server)

	writeFrame(t, conn, MessageTypePing, nil)
	if f := readFrame(t, conn); f.Type != MessageTypePong {
		t.Errorf("frame type = %q, want pong", f.Type)
	}
}

func TestClient_NoDashboard(t *testing.T) {
	_, server := setupDashboardServer(t, nil)
	conn, _ := dialWebSocket(t, server)

	writeFrame(t, conn, MessageTypeQuery, testQuery())
	if got := readError(t, conn); got.Code != ErrorCodeNoDashboard {
		t.Errorf("code = %q, want %q", got.Code, ErrorCodeNoDashboard)
	}
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub, server := setupDashboardServer(t, stubFactory)
	conn, _ := dialWebSocket(t, server)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "client not registered")

	_ = conn.Close()
	waitFor(t, func() bool { return hub.GetClientCount() == 0 }, "client not unregistered after disconnect")
}

func TestClient_BroadcastReachesBrowser(t *testing.T) {
	hub, server := setupDashboardServer(t, stubFactory)
	conn, _ := dialWebSocket(t, server)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "client not registered")

	hub.BroadcastUpstreamStatus("open", "half-open")

	f := readFrame(t, conn)
	if f.Type != MessageTypeUpstreamStatus {
		t.Fatalf("frame type = %q, want upstream_status", f.Type)
	}
	var data UpstreamStatusData
	if err := json.Unmarshal(f.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.To != "half-open" {
		t.Errorf("To = %q, want half-open", data.To)
	}
}
