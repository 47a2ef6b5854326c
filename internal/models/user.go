package models

import "time"

// User represents a registered player account
type User struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Name          string     `json:"name"`
	OAuthProvider string     `json:"oauth_provider,omitempty"`
	OAuthSubject  string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Session represents an authenticated browser session
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the session has passed its expiry time
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
