package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("user not connected")

const writeWait = 10 * time.Second

// client serializes writes to one connection; gorilla allows a single writer.
type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *client) write(messageType int, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// Manager keeps track of the live alert connections of each user. A user may
// hold several at once, one per open tab.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]*client // userID -> conns
}

func NewManager() *Manager {
	return &Manager{connections: make(map[string]map[*websocket.Conn]*client)}
}

// Register adds a connection for the user.
func (m *Manager) Register(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns, ok := m.connections[userID]
	if !ok {
		conns = make(map[*websocket.Conn]*client)
		m.connections[userID] = conns
	}
	if _, ok := conns[conn]; !ok {
		conns[conn] = &client{conn: conn}
	}
}

// Unregister closes conn and forgets it.
func (m *Manager) Unregister(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns, ok := m.connections[userID]
	if !ok {
		return
	}
	if c, ok := conns[conn]; ok {
		_ = c.conn.Close()
		delete(conns, conn)
	}
	if len(conns) == 0 {
		delete(m.connections, userID)
	}
}

func (m *Manager) clients(userID string) []*client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := m.connections[userID]
	out := make([]*client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// SendToUser sends a text message to every connection of the user.
func (m *Manager) SendToUser(userID string, payload []byte) error {
	clients := m.clients(userID)
	if len(clients) == 0 {
		return ErrNotConnected
	}
	var errs []error
	for _, c := range clients {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send writes one message to a single registered connection of the user.
func (m *Manager) Send(userID string, conn *websocket.Conn, messageType int, payload []byte) error {
	m.mu.RLock()
	c, ok := m.connections[userID][conn]
	m.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return c.write(messageType, payload)
}

// IsConnected returns whether a user currently has a live connection.
func (m *Manager) IsConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections[userID]) > 0
}

// Connections returns how many connections the user holds.
func (m *Manager) Connections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections[userID])
}

// List returns a copy of current connected user IDs.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll sends a going-away close frame to every connection and drops them.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for id, conns := range m.connections {
		for _, c := range conns {
			_ = c.write(websocket.CloseMessage, msg)
			_ = c.conn.Close()
		}
		delete(m.connections, id)
	}
}
