package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scameleon/internal/database"
	"scameleon/internal/models"
)

// SessionRepository handles database operations for login sessions
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession creates a new session for a user
func (r *SessionRepository) CreateSession(userID int64, duration time.Duration) (*models.Session, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(duration),
	}
	query := "INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)"
	if _, err := r.db.Exec(query, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID, nil if not found
func (r *SessionRepository) GetSession(id string) (*models.Session, error) {
	query := "SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?"
	session := &models.Session{}
	err := r.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session
func (r *SessionRepository) DeleteSession(id string) error {
	if _, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry time and
// returns the number removed.
func (r *SessionRepository) DeleteExpiredSessions() (int64, error) {
	result, err := r.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return count, nil
}
