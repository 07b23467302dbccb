package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat/internal/chat"
	"github.com/pulsechat/pulsechat/internal/realtime"
	_ "github.com/pulsechat/pulsechat/testing"
)

// fakeChannel implements Channel in memory so listener bookkeeping can be
// observed directly.
type fakeChannel struct {
	mu        sync.Mutex
	handlers  map[string]func(json.RawMessage)
	connected bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers:  make(map[string]func(json.RawMessage)),
		connected: true,
	}
}

func (f *fakeChannel) On(event string, handler func(json.RawMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeChannel) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeChannel) Emit(event string, data any) error { return nil }

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) fire(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	f.mu.Lock()
	handler := f.handlers[event]
	f.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

func (f *fakeChannel) listenerCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[event]; ok {
		return 1
	}
	return 0
}

func channelFunc(ch Channel) func() Channel {
	return func() Channel { return ch }
}

func newTestREST(t *testing.T, handler http.Handler) *REST {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api, err := NewREST(server.URL)
	require.NoError(t, err)
	return api
}

func selectedUser(id string) *chat.Contact {
	return &chat.Contact{ID: id, FullName: "User " + id}
}

func TestSubscribeRequiresSelectionAndConnectedChannel(t *testing.T) {
	api := newTestREST(t, http.NewServeMux())
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))

	// No selection yet.
	require.Nil(t, store.SubscribeToMessages())
	require.Zero(t, channel.listenerCount(realtime.EventNewMessage))

	// Selection but disconnected channel: still a silent no-op.
	store.SetSelectedUser(selectedUser("u1"))
	channel.connected = false
	require.Nil(t, store.SubscribeToMessages())
	require.Zero(t, channel.listenerCount(realtime.EventNewMessage))
}

func TestDoubleSubscribeDeliversExactlyOnce(t *testing.T) {
	api := newTestREST(t, http.NewServeMux())
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))
	store.SetSelectedUser(selectedUser("u1"))

	require.NotNil(t, store.SubscribeToMessages())
	require.NotNil(t, store.SubscribeToMessages())
	require.Equal(t, 1, channel.listenerCount(realtime.EventNewMessage))

	channel.fire(t, realtime.EventNewMessage, chat.Message{ID: "m1", SenderID: "u1", RecipientID: "me", Text: "hi"})
	require.Len(t, store.Messages(), 1)
}

func TestListenerFiltersOnSelectedSender(t *testing.T) {
	api := newTestREST(t, http.NewServeMux())
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))
	store.SetSelectedUser(selectedUser("u1"))
	require.NotNil(t, store.SubscribeToMessages())

	channel.fire(t, realtime.EventNewMessage, chat.Message{ID: "m1", SenderID: "u1", Text: "hi"})
	channel.fire(t, realtime.EventNewMessage, chat.Message{ID: "m2", SenderID: "u9", Text: "ignored"})

	messages := store.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "m1", messages[0].ID)
}

func TestUnsubscribeRemovesListener(t *testing.T) {
	api := newTestREST(t, http.NewServeMux())
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))
	store.SetSelectedUser(selectedUser("u1"))
	require.NotNil(t, store.SubscribeToMessages())

	store.UnsubscribeFromMessages()
	require.Zero(t, channel.listenerCount(realtime.EventNewMessage))

	channel.fire(t, realtime.EventNewMessage, chat.Message{ID: "m1", SenderID: "u1", Text: "hi"})
	require.Empty(t, store.Messages())
}

func TestSubscriptionHandleCancelIsIdempotent(t *testing.T) {
	api := newTestREST(t, http.NewServeMux())
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))
	store.SetSelectedUser(selectedUser("u1"))

	sub := store.SubscribeToMessages()
	require.NotNil(t, sub)
	sub.Cancel()
	sub.Cancel()
	require.Zero(t, channel.listenerCount(realtime.EventNewMessage))
}

func TestStaleHandleCancelKeepsActiveListener(t *testing.T) {
	api := newTestREST(t, http.NewServeMux())
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))
	store.SetSelectedUser(selectedUser("u1"))

	stale := store.SubscribeToMessages()
	active := store.SubscribeToMessages()
	require.NotNil(t, stale)
	require.NotNil(t, active)

	// The superseded handle releases nothing.
	stale.Cancel()
	require.Equal(t, 1, channel.listenerCount(realtime.EventNewMessage))

	channel.fire(t, realtime.EventNewMessage, chat.Message{ID: "m1", SenderID: "u1", Text: "hi"})
	require.Len(t, store.Messages(), 1)

	// The live handle still owns the listener.
	active.Cancel()
	require.Zero(t, channel.listenerCount(realtime.EventNewMessage))

	channel.fire(t, realtime.EventNewMessage, chat.Message{ID: "m2", SenderID: "u1", Text: "late"})
	require.Len(t, store.Messages(), 1)
}

func TestSwitchingUserClearsCacheImmediately(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message/u1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]chat.Message{{ID: "m1", SenderID: "u1", Text: "old"}})
	})
	api := newTestREST(t, mux)
	channel := newFakeChannel()
	store := NewConversationStore(api, channelFunc(channel))

	store.SetSelectedUser(selectedUser("u1"))
	require.NoError(t, store.GetMessages(context.Background()))
	require.Len(t, store.Messages(), 1)

	// The old conversation must be gone before the new fetch even starts.
	store.SetSelectedUser(selectedUser("u2"))
	require.Empty(t, store.Messages())
}

func TestStaleFetchDoesNotLeakAcrossConversations(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message/u1", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode([]chat.Message{{ID: "m1", SenderID: "u1", Text: "stale"}})
	})
	mux.HandleFunc("/api/message/u2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]chat.Message{})
	})
	api := newTestREST(t, mux)
	store := NewConversationStore(api, channelFunc(newFakeChannel()))

	store.SetSelectedUser(selectedUser("u1"))
	done := make(chan error, 1)
	go func() { done <- store.GetMessages(context.Background()) }()

	// Wait for the u1 fetch to be in flight, then switch away.
	time.Sleep(20 * time.Millisecond)
	store.SetSelectedUser(selectedUser("u2"))
	require.NoError(t, store.GetMessages(context.Background()))

	close(release)
	require.NoError(t, <-done)

	// The stale u1 response must not overwrite u2's cache.
	require.Empty(t, store.Messages())
}

func TestSendMessageAppendsToCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message/send/u1", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(chat.Message{ID: "m1", SenderID: "me", RecipientID: "u1", Text: req["text"]})
	})
	api := newTestREST(t, mux)
	store := NewConversationStore(api, channelFunc(newFakeChannel()))
	store.SetSelectedUser(selectedUser("u1"))

	require.NoError(t, store.SendMessage(context.Background(), "hi", ""))
	messages := store.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "hi", messages[0].Text)
}

func TestGetUsersPopulatesContacts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message/users", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]chat.Contact{{ID: "u1"}, {ID: "u2"}})
	})
	api := newTestREST(t, mux)
	store := NewConversationStore(api, channelFunc(newFakeChannel()))

	require.NoError(t, store.GetUsers(context.Background()))
	require.Len(t, store.Users(), 2)
	require.False(t, store.IsUsersLoading())
}
