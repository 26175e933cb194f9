package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"tilephys/internal/world"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// EventSnapshot carries a world.Snapshot
	EventSnapshot = "world:snapshot"

	// FormatMsgpack selects binary frames via ?format=msgpack
	FormatMsgpack = "msgpack"
)

// SnapshotSource is what the broadcast loop reads from.
type SnapshotSource interface {
	Snapshot() *world.Snapshot
}

// wsClient tracks a WebSocket connection with its source IP and wire format
type wsClient struct {
	conn   *websocket.Conn
	ip     string
	binary bool
}

// wsMessage holds one event pre-encoded for each format in use
type wsMessage struct {
	text   []byte
	binary []byte
}

// wsEnvelope is the frame body for both formats
type wsEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan wsMessage
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	upgrader   websocket.Upgrader
	origins    []string
	trustProxy bool

	// Connection limiting per IP
	conns *connCounter
}

// NewWebSocketHub creates a new hub with connection limiting. origins restricts the
// Origin header; nil allows localhost only.
func NewWebSocketHub(origins []string) *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		origins:    origins,
		conns:      newConnCounter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || IsAllowedOrigin(origin, h.origins) {
				return true
			}

			// Log rejected origin for security monitoring
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run starts the hub. It returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.conns.release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				// Release the connection slot for this IP
				h.conns.release(client.ip)
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn, client := range h.clients {
				kind, payload := websocket.TextMessage, message.text
				if client.binary {
					kind, payload = websocket.BinaryMessage, message.binary
				}
				if payload == nil {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteMessage(kind, payload); err != nil {
					conn.Close()
					h.conns.release(client.ip)
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
			IncrementWSMessages()
		}
	}
}

// Stop closes every connection and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// formats reports which encodings connected clients need.
func (h *WebSocketHub) formats() (text, binary bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.binary {
			binary = true
		} else {
			text = true
		}
	}
	return text, binary
}

// Broadcast sends an event to all connected clients, encoded once per format in use
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	envelope := wsEnvelope{Event: event, Data: data}
	text, binary := h.formats()

	var msg wsMessage
	var err error
	if text {
		if msg.text, err = json.Marshal(envelope); err != nil {
			log.Printf("⚠️ Failed to encode %s: %v", event, err)
			return
		}
	}
	if binary {
		if msg.binary, err = encodeMsgpack(envelope); err != nil {
			log.Printf("⚠️ Failed to encode %s as msgpack: %v", event, err)
			return
		}
	}

	select {
	case h.broadcast <- msg:
	default:
		// Channel full, skip (backpressure)
	}
}

// encodeMsgpack encodes v with the JSON field names so both formats share one schema.
func encodeMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot is the client side of a world:snapshot frame, text or binary.
func DecodeSnapshot(messageType int, data []byte) (*world.Snapshot, error) {
	var msg struct {
		Event string          `json:"event"`
		Data  *world.Snapshot `json:"data"`
	}
	var err error
	if messageType == websocket.BinaryMessage {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		err = dec.Decode(&msg)
	} else {
		err = json.Unmarshal(data, &msg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode frame")
	}
	if msg.Event != EventSnapshot || msg.Data == nil {
		return nil, errors.Errorf("unexpected event %q", msg.Event)
	}
	return msg.Data, nil
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop broadcasts new snapshots hz times per second until Stop.
func (h *WebSocketHub) StartBroadcastLoop(source SnapshotSource, hz int) {
	if hz < 1 {
		hz = 10
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))

	go func() {
		defer ticker.Stop()
		var lastSeq uint64
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}

			snap := source.Snapshot()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			h.Broadcast(EventSnapshot, snap)
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.trustProxy)

	h.mu.RLock()
	totalConnections := len(h.clients)
	h.mu.RUnlock()

	if totalConnections >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", totalConnections)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.conns.acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached (%d open)", ip, h.conns.count(ip))
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.conns.release(ip) // Release the slot we reserved
		return
	}

	client := &wsClient{conn: conn, ip: ip, binary: r.URL.Query().Get("format") == FormatMsgpack}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		h.conns.release(ip)
		return
	}

	// Clients only listen; reading detects the close.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
