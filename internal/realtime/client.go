package realtime

import "sync"

// Client represents one connected websocket session.
//
// Send is intentionally never closed by the hub so concurrent broadcasters
// cannot panic; writers select on Done instead. Close is idempotent.
type Client struct {
	UserID string
	Send   chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(userID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		UserID: userID,
		Send:   make(chan Envelope, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// push queues an envelope without ever blocking. A client whose queue is
// full simply misses the event; durable state lives in the store.
func (c *Client) push(env Envelope) bool {
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
