package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pulsechat/pulsechat/internal/chat"
	"github.com/pulsechat/pulsechat/internal/realtime"
)

// ConversationStore caches the message list for the currently selected
// conversation. The message slice always belongs to exactly one selected
// user; switching users clears it before the new fetch resolves.
type ConversationStore struct {
	api     *REST
	channel func() Channel

	mu                sync.Mutex
	messages          []chat.Message
	users             []chat.Contact
	selected          *chat.Contact
	active            *Subscription
	isUsersLoading    bool
	isMessagesLoading bool

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewConversationStore constructs a ConversationStore. channel supplies the
// realtime channel (typically AuthStore.Channel) and may return nil while
// logged out.
func NewConversationStore(api *REST, channel func() Channel) *ConversationStore {
	return &ConversationStore{
		api:     api,
		channel: channel,
		subs:    make(map[int]func()),
	}
}

// Subscribe registers a change callback and returns its cancel function.
func (cs *ConversationStore) Subscribe(fn func()) func() {
	cs.subMu.Lock()
	id := cs.nextSub
	cs.nextSub++
	cs.subs[id] = fn
	cs.subMu.Unlock()
	return func() {
		cs.subMu.Lock()
		delete(cs.subs, id)
		cs.subMu.Unlock()
	}
}

// Messages returns a snapshot of the cached conversation.
func (cs *ConversationStore) Messages() []chat.Message {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]chat.Message(nil), cs.messages...)
}

// Users returns a snapshot of the contact list.
func (cs *ConversationStore) Users() []chat.Contact {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]chat.Contact(nil), cs.users...)
}

// SelectedUser returns the current selection, or nil.
func (cs *ConversationStore) SelectedUser() *chat.Contact {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.selected == nil {
		return nil
	}
	selected := *cs.selected
	return &selected
}

// IsUsersLoading reports whether the contact fetch is in flight.
func (cs *ConversationStore) IsUsersLoading() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.isUsersLoading
}

// IsMessagesLoading reports whether the history fetch is in flight.
func (cs *ConversationStore) IsMessagesLoading() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.isMessagesLoading
}

// GetUsers fetches the contact list.
func (cs *ConversationStore) GetUsers(ctx context.Context) error {
	cs.mu.Lock()
	cs.isUsersLoading = true
	cs.mu.Unlock()
	cs.notify()

	users, err := cs.api.Contacts(ctx)

	cs.mu.Lock()
	if err == nil {
		cs.users = users
	}
	cs.isUsersLoading = false
	cs.mu.Unlock()
	cs.notify()
	return err
}

// SetSelectedUser switches the conversation. The message cache is cleared
// immediately so no message from the previous conversation leaks into the
// new one while its fetch is still in flight. Passing nil closes the view.
func (cs *ConversationStore) SetSelectedUser(user *chat.Contact) {
	cs.mu.Lock()
	cs.selected = user
	cs.messages = nil
	cs.mu.Unlock()
	cs.notify()
}

// GetMessages fetches the history for the selected conversation.
func (cs *ConversationStore) GetMessages(ctx context.Context) error {
	cs.mu.Lock()
	selected := cs.selected
	if selected == nil {
		cs.mu.Unlock()
		return nil
	}
	selectedID := selected.ID
	cs.isMessagesLoading = true
	cs.mu.Unlock()
	cs.notify()

	messages, err := cs.api.Messages(ctx, selectedID)

	cs.mu.Lock()
	// The selection may have changed while the fetch was in flight; a stale
	// result must not overwrite the new conversation's cache.
	if err == nil && cs.selected != nil && cs.selected.ID == selectedID {
		cs.messages = messages
	}
	cs.isMessagesLoading = false
	cs.mu.Unlock()
	cs.notify()
	return err
}

// SendMessage posts to the selected user and appends the stored message.
func (cs *ConversationStore) SendMessage(ctx context.Context, text, imageDataURL string) error {
	cs.mu.Lock()
	selected := cs.selected
	cs.mu.Unlock()
	if selected == nil {
		return nil
	}

	msg, err := cs.api.SendMessage(ctx, selected.ID, text, imageDataURL)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	if cs.selected != nil && cs.selected.ID == selected.ID {
		cs.messages = append(cs.messages, msg)
	}
	cs.mu.Unlock()
	cs.notify()
	return nil
}

// SubscribeToMessages attaches the new-message listener for the selected
// conversation. It requires a selection and a connected channel, otherwise
// it is a silent no-op (best-effort, the store already has the message).
// Any listener left over from an earlier call is removed first, so repeated
// calls never deliver duplicates. The returned handle detaches the listener.
func (cs *ConversationStore) SubscribeToMessages() *Subscription {
	cs.mu.Lock()
	if cs.selected == nil {
		cs.mu.Unlock()
		return nil
	}
	cs.mu.Unlock()

	channel := cs.channel()
	if channel == nil || !channel.Connected() {
		return nil
	}

	channel.Off(realtime.EventNewMessage)
	channel.On(realtime.EventNewMessage, func(data json.RawMessage) {
		var msg chat.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		cs.mu.Lock()
		// Messages from senders other than the selected user are dropped at
		// this layer; they surface on the next history fetch.
		if cs.selected == nil || msg.SenderID != cs.selected.ID {
			cs.mu.Unlock()
			return
		}
		cs.messages = append(cs.messages, msg)
		cs.mu.Unlock()
		cs.notify()
	})

	sub := &Subscription{}
	sub.cancel = func() {
		// A handle superseded by a later subscribe must not tear down the
		// listener that replaced it.
		cs.mu.Lock()
		current := cs.active == sub
		if current {
			cs.active = nil
		}
		cs.mu.Unlock()
		if current {
			channel.Off(realtime.EventNewMessage)
		}
	}
	cs.mu.Lock()
	cs.active = sub
	cs.mu.Unlock()
	return sub
}

// UnsubscribeFromMessages removes the new-message listener unconditionally.
func (cs *ConversationStore) UnsubscribeFromMessages() {
	if channel := cs.channel(); channel != nil {
		channel.Off(realtime.EventNewMessage)
	}
	cs.mu.Lock()
	cs.active = nil
	cs.mu.Unlock()
}

func (cs *ConversationStore) notify() {
	cs.subMu.Lock()
	fns := make([]func(), 0, len(cs.subs))
	for _, fn := range cs.subs {
		fns = append(fns, fn)
	}
	cs.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
