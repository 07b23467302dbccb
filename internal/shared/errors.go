package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail occurs when signing up with an email already in use.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidToken occurs when a session token fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked occurs when a logged-out token is presented again.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrEmptyMessage occurs when a message carries neither text nor image.
	ErrEmptyMessage = errors.New("message has no content")
)
