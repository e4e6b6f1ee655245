package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// DefaultPushInterval is how often connected clients receive a snapshot.
const DefaultPushInterval = 2 * time.Second

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header and pages served
// from the same host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// WSMessage is the envelope pushed to clients.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SnapshotPayload is the body of a "snapshot" message.
type SnapshotPayload struct {
	Tags     []domain.TrackedTag   `json:"tags"`
	Networks []domain.WifiNetwork  `json:"networks"`
	Stats    domain.ScanStatistics `json:"stats"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSManager pushes engine snapshots to WebSocket clients.
type WSManager struct {
	engine ports.EngineReader
	clock  timeutil.Clock
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewWSManager creates a manager reading from engine.
func NewWSManager(engine ports.EngineReader, clock timeutil.Clock, logger *slog.Logger) *WSManager {
	return &WSManager{
		engine:  engine,
		clock:   clock,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (m *WSManager) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Run broadcasts a snapshot every interval until ctx is cancelled, then
// closes every connection.
func (m *WSManager) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C():
			m.BroadcastSnapshot()
		}
	}
}

// HandleWebSocket upgrades the request and sends an initial snapshot.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
	m.logger.Debug("WebSocket connected", "remote", r.RemoteAddr)

	if data, err := m.snapshotMessage(); err == nil {
		if err := c.write(data); err != nil {
			m.remove(c)
			return
		}
	}

	// Reads only detect disconnects; clients have nothing to send.
	go func() {
		defer m.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WSManager) remove(c *client) {
	m.mu.Lock()
	_, ok := m.clients[c]
	delete(m.clients, c)
	m.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[*client]struct{})
	m.mu.Unlock()
	for c := range clients {
		_ = c.conn.Close()
	}
}

func (m *WSManager) snapshotMessage() ([]byte, error) {
	return json.Marshal(WSMessage{
		Type: "snapshot",
		Payload: SnapshotPayload{
			Tags:     m.engine.Tags(),
			Networks: m.engine.Networks(),
			Stats:    m.engine.Statistics(),
		},
	})
}

// BroadcastSnapshot sends the current ledgers to every client.
func (m *WSManager) BroadcastSnapshot() {
	data, err := m.snapshotMessage()
	if err != nil {
		m.logger.Error("Snapshot marshal failed", "error", err)
		return
	}
	m.broadcast(data)
}

// BroadcastAttempt notifies clients of a finished auto-connect cycle.
func (m *WSManager) BroadcastAttempt(a domain.ConnectionAttempt) {
	data, err := json.Marshal(WSMessage{Type: "autoconnect", Payload: a})
	if err != nil {
		return
	}
	m.broadcast(data)
}

func (m *WSManager) broadcast(data []byte) {
	m.mu.Lock()
	clients := make([]*client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			m.remove(c)
		}
	}
}
