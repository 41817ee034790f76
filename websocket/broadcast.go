// Package websocket handles real-time fan-out between the session and its participants.
// file: websocket/broadcast.go
package websocket

import (
	"classpulse/logger"
)

// broadcast is the channel feeding the fan-out loop. Buffered so the
// coordinator never waits on delivery.
var broadcast = make(chan []byte, 256)

// HandleMessages listens for messages on the broadcast channel and distributes
// them to every active connection. Delivery is best-effort: a recipient whose
// send buffer is full has that frame dropped, it never blocks the others.
func HandleMessages() {
	for msg := range broadcast {
		connMutex.Lock()
		targets := make([]*Connection, 0, len(connections))
		for c := range connections {
			targets = append(targets, c)
		}
		connMutex.Unlock()

		for _, c := range targets {
			select {
			case c.send <- msg:
			default:
				logger.Warn.Printf("[HandleMessages] Dropping broadcast frame for %s", c.ID)
			}
		}
	}
}

// SendBroadcastMessage allows raw byte data to be sent over the broadcast channel.
func SendBroadcastMessage(data []byte) {
	broadcast <- data
}
