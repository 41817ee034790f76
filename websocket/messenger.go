// Package websocket Description: This file contains the implementation of the
// realMessenger struct, through which the coordinator emits every outbound event.
// file: websocket/messenger.go
package websocket

import (
	"encoding/json"

	"classpulse/logger"
)

var defaultMessenger Messenger = &realMessenger{}

// DefaultMessenger returns the production messenger backed by the broadcast
// loop and the per-connection send channels.
func DefaultMessenger() Messenger {
	return defaultMessenger
}

// Messenger is the outbound channel of the coordinator. The recipient scope
// is part of each method's contract: Broadcast reaches every connection,
// SendTo reaches exactly one. Sending a unicast-intended event through
// Broadcast (or vice versa) is a correctness bug, not a style choice.
type Messenger interface {
	Broadcast(msg map[string]interface{})
	SendTo(c *Connection, msg map[string]interface{})
}

type realMessenger struct{}

// --------------- Methods on realMessenger -----------------

// Broadcast marshals the event and hands it to the fan-out loop.
func (r *realMessenger) Broadcast(msg map[string]interface{}) {
	m, err := json.Marshal(msg)
	if err != nil {
		logger.Error.Printf("realMessenger: Error marshalling broadcast: %v", err)
		return
	}
	go PublishBroadcastBacklog(len(broadcast))
	SendBroadcastMessage(m)
}

// SendTo delivers an event to a single connection. Like broadcast delivery it
// is best-effort: a full send buffer drops the frame.
func (r *realMessenger) SendTo(c *Connection, msg map[string]interface{}) {
	if c == nil {
		return
	}
	m, err := json.Marshal(msg)
	if err != nil {
		logger.Error.Printf("realMessenger: Error marshalling unicast: %v", err)
		return
	}
	select {
	case c.send <- m:
	default:
		logger.Warn.Printf("realMessenger: Dropping unicast frame for %s", c.ID)
	}
}
