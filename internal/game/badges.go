package game

import (
	"sort"

	"scameleon/internal/catalog"
)

// Badge ids the evaluator grants directly. World badges are looked up
// from the catalog by world id instead.
const (
	BadgeAnswerStreak = "streak10"
	BadgePerfectRuns  = "clean5"
	BadgeGuardian     = "guardian"
	BadgeTerminator   = "terminator"
)

// Notification is a one-shot user-visible event, drained once by the
// notifications endpoint.
type Notification struct {
	Kind    string `json:"kind"`
	BadgeID string `json:"badgeId,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

const (
	NotificationBadge  = "badge"
	NotificationRefill = "refill"
)

// Evaluator grants achievement badges from progression events. Grants are
// idempotent: a badge already held is never re-granted, re-persisted or
// re-announced. The two streak counters live only in memory; restarting a
// controller resets them.
type Evaluator struct {
	catalog *catalog.Catalog
	rules   Rules
	held    map[string]struct{}

	// answerStreak spans level boundaries and resets only on a wrong
	// answer; perfectStreak counts consecutive perfect runs.
	answerStreak  int
	perfectStreak int

	notifications []Notification
	persist       func(badgeID string)
}

// NewEvaluator builds an evaluator over the held badge set. persist is
// called once for each newly granted badge.
func NewEvaluator(cat *catalog.Catalog, rules Rules, held []string, persist func(badgeID string)) *Evaluator {
	e := &Evaluator{
		catalog: cat,
		rules:   rules,
		held:    make(map[string]struct{}, len(held)),
		persist: persist,
	}
	for _, id := range held {
		e.held[id] = struct{}{}
	}
	return e
}

// Unlock grants a badge. Unknown ids and badges already held are no-ops;
// returns whether the badge was newly granted.
func (e *Evaluator) Unlock(badgeID string) bool {
	badge, ok := e.catalog.Badge(badgeID)
	if !ok {
		return false
	}
	if _, ok := e.held[badgeID]; ok {
		return false
	}
	e.held[badgeID] = struct{}{}
	e.notifications = append(e.notifications, Notification{
		Kind:    NotificationBadge,
		BadgeID: badge.ID,
		Title:   badge.Name,
		Message: badge.Description,
		Icon:    badge.Icon,
	})
	if e.persist != nil {
		e.persist(badgeID)
	}
	return true
}

// Has reports whether the badge is held
func (e *Evaluator) Has(badgeID string) bool {
	_, ok := e.held[badgeID]
	return ok
}

// Held returns the held badge ids in sorted order
func (e *Evaluator) Held() []string {
	ids := make([]string, 0, len(e.held))
	for id := range e.held {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordAnswer feeds the cross-level answer streak. A wrong answer resets
// it; reaching the target grants the streak badge.
func (e *Evaluator) RecordAnswer(correct bool) {
	if !correct {
		e.answerStreak = 0
		return
	}
	e.answerStreak++
	if e.answerStreak == e.rules.AnswerStreakTarget {
		e.Unlock(BadgeAnswerStreak)
	}
}

// RecordRun feeds the consecutive-perfect-run streak and grants any badge
// the catalog pins to this level (the heart-protector checkpoint).
func (e *Evaluator) RecordRun(levelID int, perfect bool) {
	if !perfect {
		e.perfectStreak = 0
		return
	}
	e.perfectStreak++
	if e.perfectStreak == e.rules.PerfectRunTarget {
		e.Unlock(BadgePerfectRuns)
	}
	for _, badge := range e.catalog.BadgesForLevel(levelID) {
		e.Unlock(badge.ID)
	}
}

// UnlockWorld grants the completion badge for a world
func (e *Evaluator) UnlockWorld(worldID int) {
	if badge, ok := e.catalog.WorldBadge(worldID); ok {
		e.Unlock(badge.ID)
	}
}

// AnnounceRefill queues the hearts-refilled toast
func (e *Evaluator) AnnounceRefill() {
	e.notifications = append(e.notifications, Notification{
		Kind:    NotificationRefill,
		Title:   "Hearts refilled",
		Message: "Your hearts are back. Jump into the next level!",
	})
}

// DrainNotifications returns the queued notifications and clears the
// queue.
func (e *Evaluator) DrainNotifications() []Notification {
	out := e.notifications
	e.notifications = nil
	return out
}
