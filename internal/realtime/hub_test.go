package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat/internal/chat"
	"github.com/pulsechat/pulsechat/internal/observability"
)

func drain(c *Client) []Envelope {
	var envs []Envelope
	for {
		select {
		case env := <-c.Send:
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

func TestLookupReturnsMostRecentRegistration(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())

	require.Nil(t, hub.Lookup("u1"))

	first := NewClient("u1", 4)
	hub.Register(first)
	require.Same(t, first, hub.Lookup("u1"))

	second := NewClient("u1", 4)
	hub.Register(second)
	require.Same(t, second, hub.Lookup("u1"))

	// Last-connect-wins: the replaced connection is told to shut down.
	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("replaced client was not closed")
	}

	hub.Unregister(second)
	require.Nil(t, hub.Lookup("u1"))
}

func TestUnregisterStaleClientKeepsNewerConnection(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())

	old := NewClient("u1", 4)
	hub.Register(old)
	fresh := NewClient("u1", 4)
	hub.Register(fresh)

	// The old connection's teardown races the new registration; it must not
	// evict the fresh presence entry.
	hub.Unregister(old)
	require.Same(t, fresh, hub.Lookup("u1"))
}

func TestFanOutDeliversToRecipient(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())

	connB := NewClient("u2", 4)
	hub.Register(connB)
	drain(connB)

	msg := chat.Message{ID: "m1", SenderID: "u1", RecipientID: "u2", Text: "hi"}
	hub.FanOut(msg)

	envs := drain(connB)
	require.Len(t, envs, 1)
	require.Equal(t, EventNewMessage, envs[0].Event)
	require.Equal(t, msg, envs[0].Data)
}

func TestFanOutIsNoOpWithoutPresenceEntry(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())

	bystander := NewClient("u3", 4)
	hub.Register(bystander)
	drain(bystander)

	hub.FanOut(chat.Message{ID: "m1", SenderID: "u1", RecipientID: "u2", Text: "hi"})

	require.Empty(t, drain(bystander))
}

func TestRegisterBroadcastsOnlineSet(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())

	a := NewClient("ua", 8)
	hub.Register(a)
	envs := drain(a)
	require.Len(t, envs, 1)
	require.Equal(t, EventOnlineUsers, envs[0].Event)
	require.Equal(t, []string{"ua"}, envs[0].Data)

	b := NewClient("ub", 8)
	hub.Register(b)
	envs = drain(a)
	require.Len(t, envs, 1)
	require.Equal(t, []string{"ua", "ub"}, envs[0].Data)

	hub.Unregister(b)
	envs = drain(a)
	require.Len(t, envs, 1)
	require.Equal(t, []string{"ua"}, envs[0].Data)
}

func TestOnlineUsersSorted(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())
	for _, id := range []string{"zed", "amy", "mia"} {
		hub.Register(NewClient(id, 4))
	}
	require.Equal(t, []string{"amy", "mia", "zed"}, hub.OnlineUsers())
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := NewClient("u1", 2)
	c.Close()
	c.Close()
	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestPushNeverBlocksOnFullQueue(t *testing.T) {
	c := NewClient("u1", 1)
	require.True(t, c.push(Envelope{Event: EventNewMessage}))
	require.False(t, c.push(Envelope{Event: EventNewMessage}))
}

func TestHubCloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub(nil, observability.NewMetrics())
	a := NewClient("ua", 4)
	b := NewClient("ub", 4)
	hub.Register(a)
	hub.Register(b)

	hub.Close()
	require.Nil(t, hub.Lookup("ua"))
	require.Nil(t, hub.Lookup("ub"))
	select {
	case <-a.Done():
	default:
		t.Fatal("client not closed")
	}
}
