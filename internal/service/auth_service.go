package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"scameleon/internal/models"
	"scameleon/internal/repository"
	"scameleon/internal/security"
	"scameleon/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo        *repository.UserRepository
	sessionRepo     *repository.SessionRepository
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, sessionRepo *repository.SessionRepository, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		sessionRepo:     sessionRepo,
		sessionDuration: sessionDuration,
	}
}

// Register creates a new user account
func (s *AuthService) Register(email, password, name string) (*models.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.userRepo.CreateUser(email, passwordHash, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and opens a session
func (s *AuthService) Login(email, password string) (*models.User, *models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" || !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.sessionRepo.CreateSession(user.ID, s.sessionDuration)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return user, session, nil
}

// LoginOAuth finds or creates the user for an OAuth identity and opens a
// session.
func (s *AuthService) LoginOAuth(provider, subject, email, name string) (*models.User, *models.Session, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	user, err := s.userRepo.GetOrCreateOAuthUser(provider, subject, strings.ToLower(email), name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve oauth user: %w", err)
	}
	session, err := s.sessionRepo.CreateSession(user.ID, s.sessionDuration)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return user, session, nil
}

// ValidateSession resolves a session ID to its user
func (s *AuthService) ValidateSession(sessionID string) (*models.User, error) {
	session, err := s.sessionRepo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		if err := s.sessionRepo.DeleteSession(sessionID); err != nil {
			log.Printf("Failed to delete expired session: %v", err)
		}
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetUserByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// Logout deletes a session
func (s *AuthService) Logout(sessionID string) error {
	return s.sessionRepo.DeleteSession(sessionID)
}

// CleanupExpiredSessions removes sessions past their expiry
func (s *AuthService) CleanupExpiredSessions() {
	count, err := s.sessionRepo.DeleteExpiredSessions()
	if err != nil {
		log.Printf("Failed to clean up expired sessions: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Cleaned up %d expired session(s)", count)
	}
}
