package auth

import "time"

// DefaultProfilePic is assigned to accounts that never uploaded an avatar.
const DefaultProfilePic = "https://cdn.icon-icons.com/icons2/1378/PNG/512/avatardefault_92824.png"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the client-facing projection of a User. The password hash never
// leaves the service layer.
type Profile struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullname"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// Profile returns the wire representation of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}
