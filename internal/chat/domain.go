package chat

import "time"

// Message is one chat message between two users. Immutable once created.
type Message struct {
	ID          string    `json:"_id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text,omitempty"`
	ImageURL    string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Contact is a chat partner as shown in the sidebar user list.
type Contact struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullname"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}
