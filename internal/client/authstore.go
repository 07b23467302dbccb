package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pulsechat/pulsechat/internal/auth"
	"github.com/pulsechat/pulsechat/internal/realtime"
)

// AuthStore caches the authenticated identity and the online-user set. Every
// mutation notifies the registered subscribers; views read snapshots through
// the accessors instead of sharing mutable state.
type AuthStore struct {
	api  *REST
	dial ChannelDialer

	mu             sync.Mutex
	authUser       *auth.Profile
	onlineUsers    []string
	channel        Channel
	isCheckingAuth bool
	isSigningUp    bool
	isLoggingIn    bool

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewAuthStore constructs an AuthStore. IsCheckingAuth starts true and drops
// to false once the first CheckAuth round-trip completes.
func NewAuthStore(api *REST, dial ChannelDialer) *AuthStore {
	return &AuthStore{
		api:            api,
		dial:           dial,
		isCheckingAuth: true,
		subs:           make(map[int]func()),
	}
}

// Subscribe registers a change callback and returns its cancel function.
func (s *AuthStore) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// AuthUser returns the cached identity, or nil when logged out.
func (s *AuthStore) AuthUser() *auth.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authUser == nil {
		return nil
	}
	user := *s.authUser
	return &user
}

// OnlineUsers returns the last pushed online-user set.
func (s *AuthStore) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.onlineUsers...)
}

// IsCheckingAuth reports whether the initial auth check is still in flight.
func (s *AuthStore) IsCheckingAuth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCheckingAuth
}

// IsSigningUp reports whether a signup call is in flight.
func (s *AuthStore) IsSigningUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSigningUp
}

// IsLoggingIn reports whether a login call is in flight.
func (s *AuthStore) IsLoggingIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoggingIn
}

// Channel returns the realtime channel, or nil before login.
func (s *AuthStore) Channel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// CheckAuth refreshes the cached identity from the auth-check endpoint and
// connects the realtime channel when a session exists.
func (s *AuthStore) CheckAuth(ctx context.Context) error {
	profile, err := s.api.CheckAuth(ctx)

	s.mu.Lock()
	if err == nil {
		s.authUser = &profile
	} else {
		s.authUser = nil
	}
	s.isCheckingAuth = false
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return err
	}
	return s.connectChannel(ctx)
}

// Signup registers an account and opens the realtime channel.
func (s *AuthStore) Signup(ctx context.Context, fullName, email, password string) error {
	s.setFlag(&s.isSigningUp, true)
	profile, err := s.api.Signup(ctx, fullName, email, password)
	s.mu.Lock()
	if err == nil {
		s.authUser = &profile
	}
	s.isSigningUp = false
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return err
	}
	return s.connectChannel(ctx)
}

// Login authenticates and opens the realtime channel.
func (s *AuthStore) Login(ctx context.Context, email, password string) error {
	s.setFlag(&s.isLoggingIn, true)
	profile, err := s.api.Login(ctx, email, password)
	s.mu.Lock()
	if err == nil {
		s.authUser = &profile
	}
	s.isLoggingIn = false
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return err
	}
	return s.connectChannel(ctx)
}

// Logout revokes the session and drops the channel and cached state.
func (s *AuthStore) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)

	s.mu.Lock()
	channel := s.channel
	s.channel = nil
	s.authUser = nil
	s.onlineUsers = nil
	s.mu.Unlock()

	if closer, ok := channel.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	s.notify()
	return err
}

func (s *AuthStore) connectChannel(ctx context.Context) error {
	if s.dial == nil {
		return nil
	}

	channel, err := s.dial(ctx)
	if err != nil {
		return err
	}

	channel.On(realtime.EventOnlineUsers, func(data json.RawMessage) {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return
		}
		s.mu.Lock()
		s.onlineUsers = ids
		s.mu.Unlock()
		s.notify()
	})

	s.mu.Lock()
	old := s.channel
	s.channel = channel
	s.mu.Unlock()
	if closer, ok := old.(interface{ Close() error }); ok && old != nil {
		_ = closer.Close()
	}
	s.notify()
	return nil
}

func (s *AuthStore) setFlag(flag *bool, value bool) {
	s.mu.Lock()
	*flag = value
	s.mu.Unlock()
	s.notify()
}

func (s *AuthStore) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
