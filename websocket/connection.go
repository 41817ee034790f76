// Package websocket provides the WebSocket server and connection handling.
// file: websocket/connection.go
package websocket

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classpulse/logger"
)

// WSConn is an interface for the WebSocket connection.
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

// Connection represents a single WebSocket connection for one participant.
// ID is the connection-scoped identity used throughout the session state;
// a reconnecting student gets a fresh Connection and a fresh ID.
type Connection struct {
	ID   string
	conn WSConn
	send chan []byte
}

// Global registry of active connections.
var (
	connections = make(map[*Connection]bool)
	connMutex   sync.Mutex
)

// Configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// allowedOrigin restricts browser connections; empty allows any origin.
var allowedOrigin string

// SetAllowedOrigin configures the origin accepted by the upgrader and is
// called once from main with the ALLOWED_ORIGIN setting.
func SetAllowedOrigin(origin string) {
	allowedOrigin = origin
}

// Upgrader upgrades HTTP requests to WebSocket connections.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all if Test-Mode
		if r.Header.Get("Test-Mode") == "true" {
			return true
		}
		origin := r.Header.Get("Origin")
		// Non-browser clients (the Go mirror included) send no Origin header.
		if origin == "" || allowedOrigin == "" {
			return true
		}
		return origin == allowedOrigin
	},
}

// ServeWs upgrades the HTTP request to a WebSocket connection and starts the
// read and write pumps.
func ServeWs(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error.Printf("[ServeWs] WebSocket upgrade error: %v", err)
		http.Error(w, "Failed to upgrade WebSocket", http.StatusBadRequest)
		return
	}

	c := &Connection{
		ID:   uuid.NewString(),
		conn: wsConn,
		send: make(chan []byte, 256),
	}
	registerConnection(c)
	logger.Info.Printf("[ServeWs] Connected: id=%s remoteAddr=%v (%d live)", c.ID, r.RemoteAddr, connectionCount())

	go c.readPump()
	go c.writePump()
}

// readPump handles inbound commands from the client. On any read failure the
// connection is treated as disconnected: the student (if one joined on it) is
// deactivated and the updated roster is broadcast.
func (c *Connection) readPump() {
	defer func() {
		unregisterConnection(c)
		if defaultCoordinator != nil {
			defaultCoordinator.HandleDisconnect(c)
		}
		if err := c.conn.Close(); err != nil {
			return
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Warn.Printf("[readPump] Read error from %s: %v", c.ID, err)
			break
		}
		if messageType != websocket.TextMessage {
			logger.Debug.Printf("[readPump] Ignoring non-text messageType=%d", messageType)
			continue
		}

		var cmd CommandMessage
		if err := json.Unmarshal(message, &cmd); err != nil {
			logger.Warn.Printf("[readPump] Invalid JSON from %s: %v", c.ID, err)
			continue
		}
		handleIncoming(c, cmd)
	}
}

// writePump handles outbound messages to the client, including periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			return
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The channel was closed.
				logger.Debug.Printf("[writePump] Send channel closed for %s", c.ID)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn.Printf("[writePump] Error writing to %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn.Printf("[writePump] Ping error for %s: %v", c.ID, err)
				return
			}
		}
	}
}

// handleIncoming routes an inbound command to the coordinator.
func handleIncoming(c *Connection, cmd CommandMessage) {
	if defaultCoordinator == nil {
		logger.Warn.Printf("[handleIncoming] No coordinator configured; dropping %q from %s", cmd.Action, c.ID)
		return
	}
	logger.Debug.Printf("[handleIncoming] Action=%s from %s", cmd.Action, c.ID)

	switch cmd.Action {
	case ActionCreatePoll:
		defaultCoordinator.HandleCreatePoll(c, cmd.Question, cmd.Options)
	case ActionStudentJoin:
		defaultCoordinator.HandleStudentJoin(c, cmd.Name)
	case ActionSubmitResponse:
		defaultCoordinator.HandleSubmitResponse(c, cmd.Answer)
	case ActionEndPoll:
		defaultCoordinator.HandleEndPoll(c)
	case ActionRemoveStudent:
		defaultCoordinator.HandleRemoveStudent(c, cmd.StudentID)
	default:
		logger.Debug.Printf("[handleIncoming] Unhandled action: %s", cmd.Action)
	}
}

// registerConnection adds the given connection to the global connections map.
func registerConnection(c *Connection) {
	connMutex.Lock()
	defer connMutex.Unlock()
	connections[c] = true
}

// unregisterConnection removes the given connection from the global connections map.
func unregisterConnection(c *Connection) {
	connMutex.Lock()
	defer connMutex.Unlock()
	delete(connections, c)
}

// lookupConnection finds the live connection holding the given identity, or
// nil if it already went away.
func lookupConnection(id string) *Connection {
	connMutex.Lock()
	defer connMutex.Unlock()
	for c := range connections {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// connectionCount returns the number of live connections.
func connectionCount() int {
	connMutex.Lock()
	defer connMutex.Unlock()
	return len(connections)
}
