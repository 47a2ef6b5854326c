package models

import (
	"testing"
)

func TestDefaultProgress(t *testing.T) {
	p := DefaultProgress(5)

	if p.Hearts != 5 {
		t.Errorf("Hearts = %d, want 5", p.Hearts)
	}
	if p.NextHeartTime != nil {
		t.Error("NextHeartTime should be nil for a new player")
	}
	if len(p.UnlockedLevels) != 1 || p.UnlockedLevels[0] != 1 {
		t.Errorf("UnlockedLevels = %v, want [1]", p.UnlockedLevels)
	}
	if p.GameFinished {
		t.Error("GameFinished should be false for a new player")
	}
}

func TestRecordScoreKeepsMaximum(t *testing.T) {
	tests := []struct {
		name      string
		existing  int
		submitted int
		want      int
		changed   bool
	}{
		{name: "first score stored", existing: -1, submitted: 80, want: 80, changed: true},
		{name: "higher score replaces", existing: 80, submitted: 100, want: 100, changed: true},
		{name: "lower score retained", existing: 100, submitted: 60, want: 100, changed: false},
		{name: "equal score no change", existing: 100, submitted: 100, want: 100, changed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProgress(5)
			if tt.existing >= 0 {
				p.LevelScores[1] = tt.existing
			}
			changed := p.RecordScore(1, tt.submitted)
			if changed != tt.changed {
				t.Errorf("RecordScore() changed = %v, want %v", changed, tt.changed)
			}
			if got := p.LevelScores[1]; got != tt.want {
				t.Errorf("LevelScores[1] = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUnlockLevel(t *testing.T) {
	p := DefaultProgress(5)

	if !p.UnlockLevel(2) {
		t.Error("UnlockLevel(2) should report a change")
	}
	if p.UnlockLevel(2) {
		t.Error("UnlockLevel(2) again should be a no-op")
	}
	if len(p.UnlockedLevels) != 2 {
		t.Errorf("UnlockedLevels = %v, want exactly [1 2]", p.UnlockedLevels)
	}
	if !p.HasLevel(1) || !p.HasLevel(2) || p.HasLevel(3) {
		t.Errorf("unexpected unlocked set: %v", p.UnlockedLevels)
	}
}

func TestMarkWorldPlayed(t *testing.T) {
	p := DefaultProgress(5)

	if !p.MarkWorldPlayed(1) {
		t.Error("MarkWorldPlayed(1) should report a change")
	}
	if p.MarkWorldPlayed(1) {
		t.Error("MarkWorldPlayed(1) again should be a no-op")
	}
	if !p.HasPlayedWorld(1) || p.HasPlayedWorld(2) {
		t.Errorf("unexpected played worlds: %v", p.PlayedWorlds)
	}
}
