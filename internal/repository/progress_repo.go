package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"scameleon/internal/database"
	"scameleon/internal/models"
)

// ProgressRepository handles database operations for per-user game
// progress and badges. Set and map fields are stored as JSON text so
// each column can be patched without touching the others.
type ProgressRepository struct {
	db            *database.DB
	defaultHearts int
}

// NewProgressRepository creates a new progress repository. defaultHearts
// is the heart count written for players without a stored row.
func NewProgressRepository(db *database.DB, defaultHearts int) *ProgressRepository {
	return &ProgressRepository{db: db, defaultHearts: defaultHearts}
}

// Load retrieves a user's progress and badge set. A user without a stored
// row gets the new-player defaults; missing or malformed fields fall back
// to their defaults individually.
func (r *ProgressRepository) Load(userID int64) (*models.GameProgress, []string, error) {
	progress, err := r.loadProgress(userID)
	if err != nil {
		return nil, nil, err
	}
	badges, err := r.loadBadges(userID)
	if err != nil {
		return nil, nil, err
	}
	return progress, badges, nil
}

// SaveProgress applies a patch to the stored progress row, creating the
// row from defaults if it does not exist.
func (r *ProgressRepository) SaveProgress(userID int64, patch models.ProgressPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT hearts, next_heart_time, unlocked_levels, level_scores, played_worlds, game_finished
		FROM game_progress WHERE user_id = ?`
	progress, found, err := scanProgress(tx.QueryRow(query, userID), r.defaultHearts)
	if err != nil {
		return err
	}
	progress.Apply(patch)

	unlocked, scores, worlds, err := encodeProgress(progress)
	if err != nil {
		return err
	}
	var nextHeart interface{}
	if progress.NextHeartTime != nil {
		nextHeart = progress.NextHeartTime.UnixMilli()
	}

	if found {
		query = `UPDATE game_progress
			SET hearts = ?, next_heart_time = ?, unlocked_levels = ?, level_scores = ?,
				played_worlds = ?, game_finished = ?, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ?`
		_, err = tx.Exec(query, progress.Hearts, nextHeart, unlocked, scores, worlds, progress.GameFinished, userID)
	} else {
		query = `INSERT INTO game_progress
			(user_id, hearts, next_heart_time, unlocked_levels, level_scores, played_worlds, game_finished)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		_, err = tx.Exec(query, userID, progress.Hearts, nextHeart, unlocked, scores, worlds, progress.GameFinished)
	}
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddBadge records a badge for a user. Returns false if the user already
// had it; awarding the same badge twice is a no-op.
func (r *ProgressRepository) AddBadge(userID int64, badgeID string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow("SELECT badge_id FROM user_badges WHERE user_id = ? AND badge_id = ?", userID, badgeID).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check badge: %w", err)
	}

	_, err = tx.Exec("INSERT INTO user_badges (user_id, badge_id) VALUES (?, ?)", userID, badgeID)
	if err != nil {
		return false, fmt.Errorf("failed to add badge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func (r *ProgressRepository) loadProgress(userID int64) (*models.GameProgress, error) {
	query := `SELECT hearts, next_heart_time, unlocked_levels, level_scores, played_worlds, game_finished
		FROM game_progress WHERE user_id = ?`
	progress, _, err := scanProgress(r.db.QueryRow(query, userID), r.defaultHearts)
	return progress, err
}

func (r *ProgressRepository) loadBadges(userID int64) ([]string, error) {
	rows, err := r.db.Query("SELECT badge_id FROM user_badges WHERE user_id = ? ORDER BY awarded_at", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	defer rows.Close()

	var badges []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, id)
	}
	return badges, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(row rowScanner, defaultHearts int) (*models.GameProgress, bool, error) {
	var (
		hearts    int
		nextHeart sql.NullInt64
		unlocked  sql.NullString
		scores    sql.NullString
		worlds    sql.NullString
		finished  bool
	)
	err := row.Scan(&hearts, &nextHeart, &unlocked, &scores, &worlds, &finished)
	if err == sql.ErrNoRows {
		return models.DefaultProgress(defaultHearts), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get progress: %w", err)
	}

	progress := models.DefaultProgress(defaultHearts)
	progress.Hearts = hearts
	progress.GameFinished = finished
	if nextHeart.Valid {
		t := time.UnixMilli(nextHeart.Int64)
		progress.NextHeartTime = &t
	}
	if levels, ok := decodeIntList(unlocked); ok {
		progress.UnlockedLevels = levels
	}
	if m, ok := decodeScoreMap(scores); ok {
		progress.LevelScores = m
	}
	if list, ok := decodeIntList(worlds); ok {
		progress.PlayedWorlds = list
	}
	return progress, true, nil
}

func encodeProgress(p *models.GameProgress) (unlocked, scores, worlds string, err error) {
	unlockedBytes, err := json.Marshal(p.UnlockedLevels)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode unlocked levels: %w", err)
	}
	// Score keys are written as strings so the column round-trips through
	// standard JSON object encoding.
	scoreMap := make(map[string]int, len(p.LevelScores))
	for level, score := range p.LevelScores {
		scoreMap[strconv.Itoa(level)] = score
	}
	scoreBytes, err := json.Marshal(scoreMap)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode level scores: %w", err)
	}
	worldBytes, err := json.Marshal(p.PlayedWorlds)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode played worlds: %w", err)
	}
	return string(unlockedBytes), string(scoreBytes), string(worldBytes), nil
}

func decodeIntList(col sql.NullString) ([]int, bool) {
	if !col.Valid || col.String == "" {
		return nil, false
	}
	var list []int
	if err := json.Unmarshal([]byte(col.String), &list); err != nil {
		return nil, false
	}
	return list, true
}

func decodeScoreMap(col sql.NullString) (map[int]int, bool) {
	if !col.Valid || col.String == "" {
		return nil, false
	}
	var raw map[string]int
	if err := json.Unmarshal([]byte(col.String), &raw); err != nil {
		return nil, false
	}
	m := make(map[int]int, len(raw))
	for key, score := range raw {
		level, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		m[level] = score
	}
	return m, true
}
