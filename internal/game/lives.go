package game

import (
	"time"

	"scameleon/internal/models"
)

// Lives owns the heart counter and the refill deadline. It holds the
// invariant that a deadline is set if and only if hearts are at zero.
// Methods are pure state transitions; the caller drives the clock and
// persists the returned patches. Not safe for concurrent use on its own,
// the owning controller serializes access.
type Lives struct {
	rules    Rules
	hearts   int
	deadline *time.Time
}

// NewLives restores a lives manager from stored state, normalizing it to
// the deadline invariant: a zero count with no deadline becomes refillable
// immediately, a positive count drops any stale deadline.
func NewLives(rules Rules, hearts int, deadline *time.Time, now time.Time) (*Lives, models.ProgressPatch) {
	l := &Lives{rules: rules, hearts: hearts}
	var patch models.ProgressPatch

	if l.hearts < 0 {
		l.hearts = 0
	}
	if l.hearts > rules.HeartsMax {
		l.hearts = rules.HeartsMax
	}
	if l.hearts != hearts {
		h := l.hearts
		patch.Hearts = &h
	}

	switch {
	case l.hearts == 0 && deadline == nil:
		t := now
		l.deadline = &t
		patch.NextHeartTime = &t
	case l.hearts > 0 && deadline != nil:
		patch.ClearNextHeartTime = true
	case deadline != nil:
		t := *deadline
		l.deadline = &t
	}
	return l, patch
}

// Hearts returns the current heart count
func (l *Lives) Hearts() int {
	return l.hearts
}

// Depleted reports whether the player is out of hearts
func (l *Lives) Depleted() bool {
	return l.hearts == 0
}

// Deadline returns the refill deadline, nil when hearts remain
func (l *Lives) Deadline() *time.Time {
	if l.deadline == nil {
		return nil
	}
	t := *l.deadline
	return &t
}

// Remaining returns the time until refill, zero when none is pending or
// the deadline has passed.
func (l *Lives) Remaining(now time.Time) time.Duration {
	if l.deadline == nil {
		return 0
	}
	d := l.deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// LoseLife removes one heart, scheduling the refill deadline when the
// count reaches zero. Returns the patch to persist and whether this loss
// depleted the hearts.
func (l *Lives) LoseLife(now time.Time) (models.ProgressPatch, bool) {
	if l.hearts == 0 {
		return models.ProgressPatch{}, false
	}
	l.hearts--
	h := l.hearts
	patch := models.ProgressPatch{Hearts: &h}
	if l.hearts == 0 && l.deadline == nil {
		t := now.Add(l.rules.RefillTime)
		l.deadline = &t
		patch.NextHeartTime = &t
	}
	return patch, l.hearts == 0
}

// Tick checks the pending deadline against the clock and refills when it
// has been reached. A deadline long past still yields a single refill to
// the maximum; missed intervals are not banked. Returns whether a refill
// happened and the patch to persist.
func (l *Lives) Tick(now time.Time) (bool, models.ProgressPatch) {
	if l.deadline == nil || now.Before(*l.deadline) {
		return false, models.ProgressPatch{}
	}
	return true, l.refill()
}

// RefillNow refills immediately if the deadline has been reached. The
// explicit path lets a lockout screen refill without waiting for the
// next tick.
func (l *Lives) RefillNow(now time.Time) (bool, models.ProgressPatch) {
	return l.Tick(now)
}

func (l *Lives) refill() models.ProgressPatch {
	l.hearts = l.rules.HeartsMax
	l.deadline = nil
	h := l.hearts
	return models.ProgressPatch{Hearts: &h, ClearNextHeartTime: true}
}
