package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"tilephys/internal/world"
)

type staticSource struct{ snap *world.Snapshot }

func (s staticSource) Snapshot() *world.Snapshot { return s.snap }

func startHub(t *testing.T, origins []string) (*WebSocketHub, *httptest.Server) {
	t.Helper()
	hub := NewWebSocketHub(origins)
	go hub.Run()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *WebSocketHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestHubBroadcastFormats verifies JSON and msgpack clients each get their own encoding
func TestHubBroadcastFormats(t *testing.T) {
	hub, ts := startHub(t, nil)
	textConn := dial(t, ts, "", nil)
	binConn := dial(t, ts, "?format=msgpack", nil)
	waitForClients(t, hub, 2)

	snap := &world.Snapshot{Sequence: 7, Tick: 6, Cols: 2, Rows: 1, Sprites: []world.SpriteState{{ID: 1, Type: "hero", X: 12.5}}}
	hub.Broadcast(EventSnapshot, snap)

	textConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := textConn.ReadMessage()
	if err != nil {
		t.Fatalf("Text read failed: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Errorf("Expected text frame, got %d", kind)
	}
	var textMsg struct {
		Event string         `json:"event"`
		Data  world.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(data, &textMsg); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if textMsg.Event != EventSnapshot || textMsg.Data.Tick != 6 || textMsg.Data.Sprites[0].X != 12.5 {
		t.Errorf("Unexpected JSON message %+v", textMsg)
	}

	binConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err = binConn.ReadMessage()
	if err != nil {
		t.Fatalf("Binary read failed: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("Expected binary frame, got %d", kind)
	}
	var binMsg map[string]interface{}
	if err := msgpack.Unmarshal(data, &binMsg); err != nil {
		t.Fatalf("Invalid msgpack: %v", err)
	}
	if binMsg["event"] != EventSnapshot {
		t.Errorf("Expected msgpack keys to follow json tags, got %v", binMsg)
	}
	payload, ok := binMsg["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected msgpack data %T", binMsg["data"])
	}
	if _, ok := payload["sprites"]; !ok {
		t.Errorf("Expected sprites key in msgpack payload, got %v", payload)
	}
}

// TestDecodeSnapshot verifies both encodings round trip through the client decoder
func TestDecodeSnapshot(t *testing.T) {
	snap := &world.Snapshot{Sequence: 3, Tick: 2, Cols: 1, Rows: 1, Sprites: []world.SpriteState{{ID: 4, Type: "crate", Y: 9}}}
	envelope := wsEnvelope{Event: EventSnapshot, Data: snap}

	text, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}
	binary, err := encodeMsgpack(envelope)
	if err != nil {
		t.Fatal(err)
	}

	for kind, data := range map[int][]byte{websocket.TextMessage: text, websocket.BinaryMessage: binary} {
		got, err := DecodeSnapshot(kind, data)
		if err != nil {
			t.Fatalf("kind %d: %v", kind, err)
		}
		if got.Tick != 2 || len(got.Sprites) != 1 || got.Sprites[0].Type != "crate" || got.Sprites[0].Y != 9 {
			t.Errorf("kind %d: unexpected snapshot %+v", kind, got)
		}
	}

	other, _ := json.Marshal(wsEnvelope{Event: "other", Data: 1})
	if _, err := DecodeSnapshot(websocket.TextMessage, other); err == nil {
		t.Error("Expected error for non-snapshot event")
	}
}

// TestHubBroadcastLoopSkipsUnchanged verifies only new sequences are sent
func TestHubBroadcastLoopSkipsUnchanged(t *testing.T) {
	hub, ts := startHub(t, nil)
	conn := dial(t, ts, "", nil)
	waitForClients(t, hub, 1)

	hub.StartBroadcastLoop(staticSource{snap: &world.Snapshot{Sequence: 1}}, 100)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Expected first snapshot: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Unchanged snapshot should not be rebroadcast")
	}
}

// TestHubRejectsOrigin verifies the origin allow list
func TestHubRejectsOrigin(t *testing.T) {
	_, ts := startHub(t, []string{"https://viewer.example"})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("Expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}

	dial(t, ts, "", http.Header{"Origin": {"https://viewer.example"}})
}

// TestHubUnregister verifies closed clients are removed
func TestHubUnregister(t *testing.T) {
	hub, ts := startHub(t, nil)
	conn := dial(t, ts, "", nil)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

// TestIsAllowedOrigin covers the wildcard forms
func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", []string{"*"}, false},
		{"http://localhost:5173", nil, true},
		{"http://localhost", nil, true},
		{"http://localhostevil.com", nil, false},
		{"https://viewer.example", nil, false},
		{"https://viewer.example", []string{"https://viewer.example"}, true},
		{"https://viewer.example:8443", []string{"https://viewer.example:*"}, true},
		{"https://other.example", []string{"*"}, true},
	}
	for _, tt := range tests {
		if got := IsAllowedOrigin(tt.origin, tt.allowed); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}

// TestIsLoopback covers the debug server address check
func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:6060": true,
		"[::1]:6060":     true,
		"0.0.0.0:6060":   false,
		":6060":          false,
		"10.0.0.5:6060":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Errorf("isLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}

// TestDebugHandlerBasicAuth verifies credentials guard the debug mux
func TestDebugHandlerBasicAuth(t *testing.T) {
	h := DebugHandler(ObservabilityConfig{Enabled: true, BasicAuthUser: "ops", BasicAuthPass: "pw"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("Expected OK with credentials, got %d %q", rec.Code, rec.Body.String())
	}
}
