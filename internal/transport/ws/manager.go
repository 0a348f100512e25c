// Package ws provides the websocket transport for the notes agent: a
// bidirectional channel used to answer pending clarifications and to push
// progress events.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// conn wraps a websocket connection with a write lock. gorilla/websocket
// allows only one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) sendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// ConnectionManager tracks open websocket connections per user.
type ConnectionManager struct {
	mu    sync.Mutex
	conns map[int64][]*conn
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: map[int64][]*conn{}}
}

func (m *ConnectionManager) add(userID int64, c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[userID] = append(m.conns[userID], c)
}

func (m *ConnectionManager) remove(userID int64, c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.conns[userID]
	for i, existing := range list {
		if existing == c {
			m.conns[userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.conns[userID]) == 0 {
		delete(m.conns, userID)
	}
}

// Broadcast sends a message to every open connection of a user. Connections
// that fail to write are skipped; the read loop will reap them.
func (m *ConnectionManager) Broadcast(userID int64, v interface{}) {
	m.mu.Lock()
	list := append([]*conn(nil), m.conns[userID]...)
	m.mu.Unlock()

	for _, c := range list {
		_ = c.sendJSON(v)
	}
}
