package models

import (
	"sort"
	"time"
)

// GameProgress is the durable per-user game record. It mirrors the stored
// document: hearts, refill deadline, unlocked levels, best scores per
// level, worlds whose intro has been seen, and the completion flag.
type GameProgress struct {
	Hearts         int           `json:"hearts"`
	NextHeartTime  *time.Time    `json:"nextHeartTime"`
	UnlockedLevels []int         `json:"unlockedLevels"`
	LevelScores    map[int]int   `json:"levelScores"`
	PlayedWorlds   []int         `json:"playedWorlds"`
	GameFinished   bool          `json:"gameFinished"`
}

// DefaultProgress returns the record for a brand-new player: full hearts,
// only level 1 unlocked, nothing played.
func DefaultProgress(heartsMax int) *GameProgress {
	return &GameProgress{
		Hearts:         heartsMax,
		UnlockedLevels: []int{1},
		LevelScores:    map[int]int{},
		PlayedWorlds:   []int{},
	}
}

// HasLevel reports whether the given level is unlocked
func (p *GameProgress) HasLevel(levelID int) bool {
	for _, id := range p.UnlockedLevels {
		if id == levelID {
			return true
		}
	}
	return false
}

// UnlockLevel adds a level to the unlocked set; returns false if it was
// already present.
func (p *GameProgress) UnlockLevel(levelID int) bool {
	if p.HasLevel(levelID) {
		return false
	}
	p.UnlockedLevels = append(p.UnlockedLevels, levelID)
	sort.Ints(p.UnlockedLevels)
	return true
}

// HasPlayedWorld reports whether the world's intro has been shown
func (p *GameProgress) HasPlayedWorld(worldID int) bool {
	for _, id := range p.PlayedWorlds {
		if id == worldID {
			return true
		}
	}
	return false
}

// MarkWorldPlayed records that the world's intro has been shown; returns
// false if it was already recorded.
func (p *GameProgress) MarkWorldPlayed(worldID int) bool {
	if p.HasPlayedWorld(worldID) {
		return false
	}
	p.PlayedWorlds = append(p.PlayedWorlds, worldID)
	sort.Ints(p.PlayedWorlds)
	return true
}

// RecordScore stores a level score, keeping the maximum ever achieved.
// Returns true if the stored value changed.
func (p *GameProgress) RecordScore(levelID, score int) bool {
	if existing, ok := p.LevelScores[levelID]; ok && existing >= score {
		return false
	}
	p.LevelScores[levelID] = score
	return true
}

// ProgressPatch is a partial update of GameProgress. Nil fields are left
// untouched; each set field is persisted independently.
type ProgressPatch struct {
	Hearts *int

	// NextHeartTime replaces the stored refill deadline when non-nil;
	// ClearNextHeartTime resets it to null.
	NextHeartTime      *time.Time
	ClearNextHeartTime bool

	UnlockedLevels []int
	LevelScores    map[int]int
	PlayedWorlds   []int
	GameFinished   *bool
}

// Apply merges the patch into the progress record. List and map fields
// replace the stored value wholesale; scalars only when set.
func (p *GameProgress) Apply(patch ProgressPatch) {
	if patch.Hearts != nil {
		p.Hearts = *patch.Hearts
	}
	if patch.NextHeartTime != nil {
		t := *patch.NextHeartTime
		p.NextHeartTime = &t
	} else if patch.ClearNextHeartTime {
		p.NextHeartTime = nil
	}
	if patch.UnlockedLevels != nil {
		p.UnlockedLevels = append([]int(nil), patch.UnlockedLevels...)
	}
	if patch.LevelScores != nil {
		p.LevelScores = make(map[int]int, len(patch.LevelScores))
		for k, v := range patch.LevelScores {
			p.LevelScores[k] = v
		}
	}
	if patch.PlayedWorlds != nil {
		p.PlayedWorlds = append([]int(nil), patch.PlayedWorlds...)
	}
	if patch.GameFinished != nil {
		p.GameFinished = *patch.GameFinished
	}
}

// IsEmpty reports whether the patch carries no changes
func (p ProgressPatch) IsEmpty() bool {
	return p.Hearts == nil && p.NextHeartTime == nil && !p.ClearNextHeartTime &&
		p.UnlockedLevels == nil && p.LevelScores == nil && p.PlayedWorlds == nil &&
		p.GameFinished == nil
}
