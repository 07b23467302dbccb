package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsechat/pulsechat/internal/shared"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 4096
)

// WSHandler upgrades authenticated requests to websocket connections and
// binds them to the hub. The connection's identity comes from the verified
// session in the request context, never from anything the client sends on
// the wire.
type WSHandler struct {
	logger *slog.Logger
	hub    *Hub

	upgrader websocket.Upgrader
}

// NewWSHandler constructs a WSHandler.
func NewWSHandler(logger *slog.Logger, hub *Hub) *WSHandler {
	return &WSHandler{
		logger: logger,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP handles GET /ws. It must be mounted behind the auth middleware.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}

	client := NewClient(user.ID, 64)
	h.hub.Register(client)

	go h.writePump(conn, client)
	h.readPump(conn, client)

	h.hub.Unregister(client)
	_ = conn.Close()
}

// readPump consumes inbound frames until the connection drops. Inbound
// payloads carry no chat semantics; reading keeps pong handling alive and
// detects the close.
func (h *WSHandler) readPump(conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read", slog.String("user_id", client.UserID), slog.Any("error", err))
			}
			return
		}
	}
}

// writePump serializes queued envelopes onto the connection and keeps the
// transport-level ping/pong alive.
func (h *WSHandler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				client.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		case <-client.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		}
	}
}
