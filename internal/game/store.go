package game

import "scameleon/internal/models"

// ProgressStore is the game's only persistence boundary. The repository
// layer implements it against SQL; tests use an in-memory fake.
type ProgressStore interface {
	// Load returns the user's progress and badge ids. A user with no
	// stored record gets new-player defaults, not an error.
	Load(userID int64) (*models.GameProgress, []string, error)

	// SaveProgress applies a partial update; unset patch fields are left
	// untouched in the stored record.
	SaveProgress(userID int64, patch models.ProgressPatch) error

	// AddBadge appends a badge id to the user's set. Returns false if
	// the badge was already held.
	AddBadge(userID int64, badgeID string) (bool, error)
}
