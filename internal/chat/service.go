package chat

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/pulsechat/pulsechat/internal/observability"
	"github.com/pulsechat/pulsechat/internal/shared"
	"github.com/pulsechat/pulsechat/internal/storage"
)

// MessagePusher delivers a freshly persisted message to the recipient's live
// connection, if any. Implementations never block and never report delivery
// failure back to the sender: the message is already durable.
type MessagePusher interface {
	FanOut(msg Message)
}

// Service wraps messaging business rules.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	media    storage.ObjectStore
	pusher   MessagePusher
	metrics  *observability.Metrics
	contacts singleflight.Group
}

// NewService constructs a new Service. pusher and metrics may be nil.
func NewService(logger *slog.Logger, repo Repository, media storage.ObjectStore, pusher MessagePusher, metrics *observability.Metrics) *Service {
	return &Service{
		logger:  logger,
		repo:    repo,
		media:   media,
		pusher:  pusher,
		metrics: metrics,
	}
}

// Send persists a message and fans it out to the recipient's connection.
// Fan-out runs only after a successful insert, so an offline or slow
// recipient never blocks or fails the send.
func (s *Service) Send(ctx context.Context, senderID, recipientID, text, imageDataURL string) (*Message, error) {
	if text == "" && imageDataURL == "" {
		return nil, shared.ErrEmptyMessage
	}

	exists, err := s.repo.UserExists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrNotFound
	}

	var imageURL string
	if imageDataURL != "" {
		if s.media == nil {
			return nil, shared.ErrEmptyMessage
		}
		imageURL, err = s.media.UploadDataURL(ctx, imageDataURL)
		if err != nil {
			return nil, err
		}
	}

	msg := &Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		ImageURL:    imageURL,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.MessageSent()

	if s.pusher != nil {
		s.pusher.FanOut(*msg)
	}
	return msg, nil
}

// History returns the conversation between the caller and the other user.
// An empty conversation is an empty slice, not an error.
func (s *Service) History(ctx context.Context, selfID, otherID string) ([]Message, error) {
	return s.repo.ListByParticipants(ctx, selfID, otherID)
}

// Contacts lists chat partners. Concurrent calls for the same user collapse
// into one query.
func (s *Service) Contacts(ctx context.Context, selfID string) ([]Contact, error) {
	result, err, _ := s.contacts.Do(selfID, func() (any, error) {
		return s.repo.ListContacts(ctx, selfID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Contact), nil
}
