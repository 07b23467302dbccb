// Package client is the embeddable chat client: a REST transport, a realtime
// channel and explicit state-holder stores with subscriber notification.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Channel is the realtime event stream the stores subscribe to. At most one
// handler per event name is registered at a time.
type Channel interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
	Emit(event string, data any) error
	Connected() bool
}

// ChannelDialer opens the realtime channel for the authenticated session.
type ChannelDialer func(ctx context.Context) (Channel, error)

// Subscription is the handle returned by ConversationStore.SubscribeToMessages.
// Cancel detaches the listener and is safe to call more than once.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Cancel releases the subscription.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type wireEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSChannel implements Channel over a gorilla websocket connection.
type WSChannel struct {
	conn *websocket.Conn

	mu        sync.Mutex
	handlers  map[string]func(json.RawMessage)
	connected bool
	closeOnce sync.Once
}

// DialWS connects the websocket endpoint and starts the dispatch loop.
// header carries the session cookie.
func DialWS(ctx context.Context, url string, header http.Header) (*WSChannel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ch := &WSChannel{
		conn:      conn,
		handlers:  make(map[string]func(json.RawMessage)),
		connected: true,
	}
	go ch.readLoop()
	return ch, nil
}

// On registers the handler for an event, replacing any previous one.
func (ch *WSChannel) On(event string, handler func(json.RawMessage)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.handlers[event] = handler
}

// Off removes the handler for an event.
func (ch *WSChannel) Off(event string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	delete(ch.handlers, event)
}

// Emit sends a named event to the server.
func (ch *WSChannel) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.conn.WriteJSON(wireEnvelope{Event: event, Data: payload})
}

// Connected reports whether the channel is still live.
func (ch *WSChannel) Connected() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.connected
}

// Close tears the connection down.
func (ch *WSChannel) Close() error {
	var err error
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		ch.connected = false
		ch.mu.Unlock()
		err = ch.conn.Close()
	})
	return err
}

func (ch *WSChannel) readLoop() {
	defer func() { _ = ch.Close() }()
	for {
		var env wireEnvelope
		if err := ch.conn.ReadJSON(&env); err != nil {
			return
		}
		ch.mu.Lock()
		handler := ch.handlers[env.Event]
		ch.mu.Unlock()
		if handler != nil {
			handler(env.Data)
		}
	}
}

var _ Channel = (*WSChannel)(nil)
