package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for the chat module.
type Repository interface {
	InsertMessage(ctx context.Context, msg *Message) error
	ListByParticipants(ctx context.Context, userA, userB string) ([]Message, error)
	ListContacts(ctx context.Context, selfID string) ([]Contact, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertMessage persists a message, assigning its identifier and timestamp.
func (r *PGRepository) InsertMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, text, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, msg.SenderID, msg.RecipientID, msg.Text, msg.ImageURL)
	return row.Scan(&msg.CreatedAt)
}

// ListByParticipants returns the conversation between two users in creation
// order, oldest first.
func (r *PGRepository) ListByParticipants(ctx context.Context, userA, userB string) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sender_id, recipient_id, text, image_url, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at, id`,
		userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Text, &msg.ImageURL, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// ListContacts returns every user except the caller.
func (r *PGRepository) ListContacts(ctx context.Context, selfID string) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, email, profile_pic
		FROM users WHERE id <> $1 ORDER BY full_name, id`,
		selfID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.ProfilePic); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

// UserExists reports whether an account with the given id exists.
func (r *PGRepository) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

var _ Repository = (*PGRepository)(nil)
