// Package realtime keeps the per-user websocket connections, tracks presence
// and fans persisted messages out to their recipient.
package realtime

// Event names understood by connected clients.
const (
	// EventNewMessage carries a chat.Message payload.
	EventNewMessage = "newMessage"
	// EventOnlineUsers carries the full set of online user identifiers.
	EventOnlineUsers = "getOnlineUsers"
)

// Envelope is one named event on the wire.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
