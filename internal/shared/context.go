package shared

import "context"

type userContextKey struct{}

// AuthUser is the authenticated identity attached to a request context.
type AuthUser struct {
	ID         string
	Email      string
	FullName   string
	ProfilePic string
}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(userContextKey{}).(*AuthUser)
	return user
}
