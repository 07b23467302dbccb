package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulsechat/pulsechat/internal/shared"
	"github.com/pulsechat/pulsechat/internal/storage"
)

// MinPasswordLength mirrors the signup form constraint.
const MinPasswordLength = 6

// Service wraps account and credential business rules.
type Service struct {
	repo  Repository
	media storage.ObjectStore
}

// NewService constructs a new Service.
func NewService(repo Repository, media storage.ObjectStore) *Service {
	return &Service{repo: repo, media: media}
}

// Signup creates a new account with a bcrypt password hash.
func (s *Service) Signup(ctx context.Context, fullName, email, password string) (*User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || len(password) < MinPasswordLength {
		return nil, shared.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		ProfilePic:   DefaultProfilePic,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate validates email/password credentials. Unknown accounts and
// wrong passwords report the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// GetByID loads an account by identifier.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfilePic uploads the data-URL encoded avatar and stores its URL.
func (s *Service) UpdateProfilePic(ctx context.Context, userID, imageDataURL string) (*User, error) {
	if s.media == nil {
		return nil, fmt.Errorf("auth: media storage not configured")
	}
	url, err := s.media.UploadDataURL(ctx, imageDataURL)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateProfilePic(ctx, userID, url)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
