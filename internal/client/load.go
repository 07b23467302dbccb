package client

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// InitialLoad runs the auth check and the contact fetch concurrently, the
// first thing a freshly opened client does.
func InitialLoad(ctx context.Context, authStore *AuthStore, convStore *ConversationStore) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return authStore.CheckAuth(ctx) })
	g.Go(func() error { return convStore.GetUsers(ctx) })
	return g.Wait()
}
