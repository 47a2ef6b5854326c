package repository

import (
	"database/sql"
	"fmt"

	"scameleon/internal/database"
	"scameleon/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user with a password hash
func (r *UserRepository) CreateUser(email, passwordHash, name string) (*models.User, error) {
	query := "INSERT INTO users (email, password_hash, name) VALUES (?, ?, ?)"
	id, err := r.db.ExecReturningID(query, email, passwordHash, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.GetUserByID(id)
}

// GetUserByEmail retrieves a user by email, nil if not found
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	query := `SELECT id, email, password_hash, name, oauth_provider, oauth_subject, created_at, updated_at
		FROM users WHERE email = ?`
	return r.scanUser(r.db.QueryRow(query, email))
}

// GetUserByID retrieves a user by ID, nil if not found
func (r *UserRepository) GetUserByID(id int64) (*models.User, error) {
	query := `SELECT id, email, password_hash, name, oauth_provider, oauth_subject, created_at, updated_at
		FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetOrCreateOAuthUser finds a user by OAuth provider and subject, creating
// one if it does not exist. An existing user with the same email is linked
// to the provider instead of being duplicated.
func (r *UserRepository) GetOrCreateOAuthUser(provider, subject, email, name string) (*models.User, error) {
	query := `SELECT id, email, password_hash, name, oauth_provider, oauth_subject, created_at, updated_at
		FROM users WHERE oauth_provider = ? AND oauth_subject = ?`
	user, err := r.scanUser(r.db.QueryRow(query, provider, subject))
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = r.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		query = "UPDATE users SET oauth_provider = ?, oauth_subject = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
		if _, err := r.db.Exec(query, provider, subject, user.ID); err != nil {
			return nil, fmt.Errorf("failed to link oauth user: %w", err)
		}
		return r.GetUserByID(user.ID)
	}

	query = "INSERT INTO users (email, password_hash, name, oauth_provider, oauth_subject) VALUES (?, '', ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, email, name, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}
	return r.GetUserByID(id)
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var provider, subject sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&provider,
		&subject,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.OAuthProvider = provider.String
	user.OAuthSubject = subject.String
	return user, nil
}
