package game

import (
	"errors"
	"testing"
	"time"

	"scameleon/internal/models"
)

func TestFreshUserFailsOutIntoLockout(t *testing.T) {
	env := newTestEnv(t)

	// Two wrong answers drain both hearts; the lockout takes over even
	// though the level just finished.
	env.playLevel(t, 1, "b", "b")

	snap := env.controller.Snapshot()
	if snap.View != ViewLockout {
		t.Fatalf("view = %s, want lockout", snap.View)
	}
	if snap.Hearts != 0 {
		t.Fatalf("hearts = %d, want 0", snap.Hearts)
	}
	if snap.RefillSeconds <= 0 {
		t.Fatal("expected a running refill countdown")
	}
	if snap.Level != nil {
		t.Fatal("session state leaked into the lockout snapshot")
	}

	env.outbox.Flush()
	stored := env.store.stored(1)
	if stored == nil {
		t.Fatal("nothing persisted")
	}
	if stored.Hearts != 0 || stored.NextHeartTime == nil {
		t.Fatalf("stored hearts=%d nextHeartTime=%v, want 0 and non-nil", stored.Hearts, stored.NextHeartTime)
	}
	if len(stored.LevelScores) != 0 {
		t.Fatalf("a failed-out attempt recorded a score: %v", stored.LevelScores)
	}
}

func TestPerfectRunUnlocksNextLevel(t *testing.T) {
	env := newTestEnv(t)

	env.playLevel(t, 1, "a", "a")

	snap := env.controller.Snapshot()
	if snap.View != ViewLevelMap {
		t.Fatalf("view = %s, want level map", snap.View)
	}

	env.outbox.Flush()
	stored := env.store.stored(1)
	if stored.LevelScores[1] != 40 {
		t.Fatalf("stored score = %d, want 40", stored.LevelScores[1])
	}
	if !stored.HasLevel(2) {
		t.Fatalf("level 2 not unlocked: %v", stored.UnlockedLevels)
	}
	if stored.Hearts != testRules().HeartsMax {
		t.Fatalf("hearts = %d, want untouched %d", stored.Hearts, testRules().HeartsMax)
	}
}

func TestReplayKeepsMaximumScore(t *testing.T) {
	env := newTestEnv(t)

	env.playLevel(t, 1, "a", "a")
	env.outbox.Flush()
	if got := env.store.stored(1).LevelScores[1]; got != 40 {
		t.Fatalf("stored score = %d, want 40", got)
	}

	// A weaker replay must not lower the record.
	env.playLevel(t, 1, "b", "a")
	env.outbox.Flush()
	if got := env.store.stored(1).LevelScores[1]; got != 40 {
		t.Fatalf("stored score after weaker replay = %d, want 40", got)
	}
	if got := env.controller.Snapshot().Hearts; got != testRules().HeartsMax-1 {
		t.Fatalf("hearts = %d, the lost heart must stick", got)
	}
}

func TestWorldCompletionShowsModalAndBadge(t *testing.T) {
	env := newTestEnv(t)

	env.playLevel(t, 1, "a", "a")
	env.playLevel(t, 2, "a", "a")

	snap := env.controller.Snapshot()
	if snap.Modal != ModalWorldComplete || snap.ModalWorld != 1 {
		t.Fatalf("modal = %s world %d, want worldComplete for world 1", snap.Modal, snap.ModalWorld)
	}
	has := func(id string) bool {
		for _, b := range env.controller.HeldBadges() {
			if b == id {
				return true
			}
		}
		return false
	}
	if !has("world1") {
		t.Fatal("world1 badge not granted")
	}
	// Level 2 is the heart-protector checkpoint.
	if !has("heartkeeper") {
		t.Fatal("heartkeeper badge not granted for a perfect checkpoint run")
	}

	if err := env.controller.DismissModal(); err != nil {
		t.Fatalf("dismiss modal: %v", err)
	}
	if got := env.controller.Snapshot().View; got != ViewWorldSelect {
		t.Fatalf("view after dismissal = %s, want world select", got)
	}
}

func TestGameCompletion(t *testing.T) {
	env := newTestEnv(t)
	finished := make(chan int64, 1)
	env.controller.onDone = func(userID int64) { finished <- userID }

	env.passLevelPerfect(t, 1)
	env.passLevelPerfect(t, 2)
	env.passLevelPerfect(t, 3)
	env.playLevel(t, 4, "a", "a")

	snap := env.controller.Snapshot()
	if snap.Modal != ModalGameComplete {
		t.Fatalf("modal = %s, want gameComplete", snap.Modal)
	}
	if !snap.GameFinished {
		t.Fatal("gameFinished not set")
	}

	env.outbox.Flush()
	stored := env.store.stored(1)
	if !stored.GameFinished {
		t.Fatal("gameFinished not persisted")
	}
	for _, id := range stored.UnlockedLevels {
		if id > 4 {
			t.Fatalf("nonexistent level %d unlocked past the final level", id)
		}
	}
	badges := env.store.storedBadges(1)
	want := map[string]bool{"guardian": false, "terminator": false, "world1": false}
	for _, id := range badges {
		if _, ok := want[id]; ok {
			want[id] = true
		}
		// The game-complete branch supersedes world completion, so the
		// final world's badge is never awarded.
		if id == "world2" {
			t.Errorf("final world badge awarded alongside game completion")
		}
	}
	for id, got := range want {
		if !got {
			t.Errorf("badge %s not persisted, have %v", id, badges)
		}
	}

	select {
	case userID := <-finished:
		if userID != 1 {
			t.Fatalf("completion callback for user %d, want 1", userID)
		}
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}

	// Finishing again must not re-fire the callback.
	if err := env.controller.DismissModal(); err != nil {
		t.Fatalf("dismiss modal: %v", err)
	}
	env.playLevel(t, 4, "a", "a")
	select {
	case <-finished:
		t.Fatal("completion callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCleanRunBadgeFiresExactlyOnce(t *testing.T) {
	env := newTestEnv(t)

	cleanCount := 0
	countClean := func() {
		for _, n := range env.controller.Notifications() {
			if n.Kind == NotificationBadge && n.BadgeID == BadgePerfectRuns {
				cleanCount++
			}
		}
	}

	// Target is 2 consecutive perfect runs in the test rules.
	env.passLevelPerfect(t, 1)
	countClean()
	if cleanCount != 0 {
		t.Fatal("clean-run badge fired early")
	}
	env.passLevelPerfect(t, 1)
	countClean()
	if cleanCount != 1 {
		t.Fatalf("clean-run badge fired %d times after reaching the target", cleanCount)
	}
	env.passLevelPerfect(t, 1)
	countClean()
	if cleanCount != 1 {
		t.Fatalf("clean-run badge re-fired, total %d", cleanCount)
	}

	env.outbox.Flush()
	count := 0
	for _, id := range env.store.storedBadges(1) {
		if id == BadgePerfectRuns {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("badge persisted %d times", count)
	}
}

func TestCleanRunStreakResetsOnImperfectRun(t *testing.T) {
	env := newTestEnv(t)

	env.passLevelPerfect(t, 1)
	env.playLevel(t, 1, "b", "a")
	env.passLevelPerfect(t, 1)

	for _, n := range env.controller.Notifications() {
		if n.BadgeID == BadgePerfectRuns {
			t.Fatal("clean-run badge granted across a broken streak")
		}
	}
}

func TestAnswerStreakBadgeSpansLevels(t *testing.T) {
	env := newTestEnv(t)

	// Target 3: two correct on level 1, the third on level 2.
	env.playLevel(t, 1, "a", "a")
	env.playLevel(t, 2, "a", "a")

	found := false
	for _, n := range env.controller.Notifications() {
		if n.BadgeID == BadgeAnswerStreak {
			found = true
		}
	}
	if !found {
		t.Fatal("answer streak badge not granted across level boundary")
	}
}

func TestOfflineElapsedDeadlineRefillsImmediately(t *testing.T) {
	rules := testRules()
	store := newFakeStore(rules.HeartsMax)
	clock := newFakeClock()
	outbox := NewOutbox(16)
	t.Cleanup(outbox.Close)

	// Stored state: depleted long ago, deadline long past.
	past := clock.Now().Add(-3 * rules.RefillTime)
	zero := 0
	if err := store.SaveProgress(7, models.ProgressPatch{Hearts: &zero, NextHeartTime: &past}); err != nil {
		t.Fatal(err)
	}

	c, err := NewController(7, ControllerConfig{
		Rules:   rules,
		Catalog: testCatalog(t),
		Store:   store,
		Outbox:  outbox,
		Now:     clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build controller: %v", err)
	}
	t.Cleanup(c.Close)

	if got := c.Snapshot().View; got != ViewLockout {
		t.Fatalf("view on load = %s, want lockout", got)
	}

	// The first tick performs exactly one refill to the maximum.
	c.Tick()
	snap := c.Snapshot()
	if snap.Hearts != rules.HeartsMax {
		t.Fatalf("hearts = %d, want %d", snap.Hearts, rules.HeartsMax)
	}
	if snap.View != ViewWorldSelect {
		t.Fatalf("view after refill = %s, want world select", snap.View)
	}

	outbox.Flush()
	stored := store.stored(7)
	if stored.Hearts != rules.HeartsMax || stored.NextHeartTime != nil {
		t.Fatalf("stored hearts=%d deadline=%v after refill", stored.Hearts, stored.NextHeartTime)
	}
}

func TestLockoutGating(t *testing.T) {
	env := newTestEnv(t)
	env.playLevel(t, 1, "b", "b")

	if got := env.controller.Snapshot().View; got != ViewLockout {
		t.Fatalf("view = %s, want lockout", got)
	}
	if err := env.controller.SelectLevel(1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SelectLevel during lockout: %v", err)
	}
	if err := env.controller.StartLevel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("StartLevel during lockout: %v", err)
	}
	if err := env.controller.RefillNow(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("RefillNow before the deadline: %v", err)
	}

	env.clock.Advance(testRules().RefillTime + time.Second)
	snap := env.controller.Snapshot()
	if !snap.RefillReady {
		t.Fatal("refill not marked ready after the deadline")
	}
	if err := env.controller.RefillNow(); err != nil {
		t.Fatalf("RefillNow after the deadline: %v", err)
	}
	snap = env.controller.Snapshot()
	if snap.Hearts != testRules().HeartsMax {
		t.Fatalf("hearts = %d after explicit refill", snap.Hearts)
	}
	// The lockout started mid-level; the player resumes on that map.
	if snap.View != ViewLevelMap || snap.CurrentWorld != 1 {
		t.Fatalf("resumed at %s world %d, want level map of world 1", snap.View, snap.CurrentWorld)
	}
}

func TestWorldGating(t *testing.T) {
	env := newTestEnv(t)

	if err := env.controller.SelectWorld(2); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("selecting a locked world: %v", err)
	}
	if err := env.controller.SelectWorld(99); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("selecting an unknown world: %v", err)
	}

	env.passLevelPerfect(t, 1)
	env.passLevelPerfect(t, 2)

	if err := env.controller.SelectWorld(2); err != nil {
		t.Fatalf("world 2 should be playable after world 1 is passed: %v", err)
	}
	// First entry shows the intro; dismissal records the world as played.
	if got := env.controller.Snapshot().Modal; got != ModalWorldIntro {
		t.Fatalf("modal = %s, want world intro", got)
	}
	if err := env.controller.DismissIntro(); err != nil {
		t.Fatalf("dismiss intro: %v", err)
	}
	env.outbox.Flush()
	if !env.store.stored(1).HasPlayedWorld(2) {
		t.Fatal("played world not persisted after intro dismissal")
	}
}

func TestSelectingLockedLevelRejected(t *testing.T) {
	env := newTestEnv(t)
	if err := env.controller.SelectWorld(1); err != nil {
		t.Fatal(err)
	}
	if err := env.controller.DismissIntro(); err != nil {
		t.Fatal(err)
	}
	if err := env.controller.SelectLevel(2); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("selecting a locked level: %v", err)
	}
	if err := env.controller.SelectLevel(3); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("selecting a level from another world: %v", err)
	}
}

func TestExitLevelDiscardsTransientState(t *testing.T) {
	env := newTestEnv(t)
	env.enterLevel(t, 1)
	if err := env.controller.SubmitAnswer("b"); err != nil {
		t.Fatal(err)
	}
	if err := env.controller.ExitLevel(); err != nil {
		t.Fatalf("exit level: %v", err)
	}

	snap := env.controller.Snapshot()
	if snap.View != ViewLevelMap || snap.Level != nil {
		t.Fatalf("view=%s level=%v after exit", snap.View, snap.Level)
	}
	// The lost heart sticks; nothing else was recorded.
	if snap.Hearts != testRules().HeartsMax-1 {
		t.Fatalf("hearts = %d, want %d", snap.Hearts, testRules().HeartsMax-1)
	}
	env.outbox.Flush()
	stored := env.store.stored(1)
	if len(stored.LevelScores) != 0 {
		t.Fatalf("partial attempt recorded a score: %v", stored.LevelScores)
	}
	if err := env.controller.SubmitAnswer("a"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("answer with no active level: %v", err)
	}
}

func TestExitLevelWithEmptyHeartsLocksOut(t *testing.T) {
	rules := testRules()
	rules.HeartsMax = 1
	rules.FeedbackDelay = time.Hour
	env := newTestEnvWithRules(t, rules)

	env.enterLevel(t, 1)
	// The wrong answer drains the last heart, but with feedback still
	// showing the session never advances on its own.
	if err := env.controller.SubmitAnswer("b"); err != nil {
		t.Fatal(err)
	}
	if err := env.controller.ExitLevel(); err != nil {
		t.Fatalf("exit level: %v", err)
	}

	snap := env.controller.Snapshot()
	if snap.View != ViewLockout {
		t.Fatalf("view = %s with zero hearts, want lockout", snap.View)
	}
	if snap.Hearts != 0 {
		t.Fatalf("hearts = %d, want 0", snap.Hearts)
	}
	if snap.RefillSeconds <= 0 {
		t.Fatalf("refillSeconds = %d, want a pending countdown", snap.RefillSeconds)
	}

	// The refill returns the player to the level map they exited to.
	env.clock.Advance(rules.RefillTime)
	env.controller.Tick()
	snap = env.controller.Snapshot()
	if snap.View != ViewLevelMap || snap.CurrentWorld != 1 {
		t.Fatalf("view=%s world=%d after refill, want level map of world 1", snap.View, snap.CurrentWorld)
	}
	if snap.Hearts != rules.HeartsMax {
		t.Fatalf("hearts = %d after refill, want %d", snap.Hearts, rules.HeartsMax)
	}
}

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.store.mu.Lock()
	env.store.saveErr = errors.New("store down")
	env.store.mu.Unlock()

	env.playLevel(t, 1, "a", "a")
	env.outbox.Flush()

	// In-memory state is not rolled back and the queue drains; the
	// failed writes are simply gone.
	snap := env.controller.Snapshot()
	if !snap.Synced {
		t.Fatal("outbox should report synced after draining, even on failures")
	}
	found := false
	for _, w := range snap.Worlds {
		for _, l := range w.Levels {
			if l.ID == 2 && l.Unlocked {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("optimistic unlock missing from the in-memory state")
	}
	if stored := env.store.stored(1); stored != nil && len(stored.LevelScores) != 0 {
		t.Fatal("failed write reached the store")
	}
}

func TestFeedbackTimerDoesNotFireIntoExitedSession(t *testing.T) {
	rules := testRules()
	rules.FeedbackDelay = 20 * time.Millisecond
	env := newTestEnvWithRules(t, rules)

	env.enterLevel(t, 1)
	if err := env.controller.SubmitAnswer("a"); err != nil {
		t.Fatal(err)
	}
	if err := env.controller.ExitLevel(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(60 * time.Millisecond)
	snap := env.controller.Snapshot()
	if snap.View != ViewLevelMap || snap.Level != nil {
		t.Fatalf("stale timer mutated state: view=%s level=%v", snap.View, snap.Level)
	}
	env.outbox.Flush()
	if stored := env.store.stored(1); stored != nil && len(stored.LevelScores) != 0 {
		t.Fatal("stale timer recorded a score")
	}
}

func TestClientAdvanceRacesServerTimer(t *testing.T) {
	rules := testRules()
	rules.FeedbackDelay = 10 * time.Millisecond
	env := newTestEnvWithRules(t, rules)

	env.enterLevel(t, 1)
	if err := env.controller.SubmitAnswer("a"); err != nil {
		t.Fatal(err)
	}
	// Let the server timer win, then send the client fallback.
	time.Sleep(40 * time.Millisecond)
	if err := env.controller.Advance(); err != nil {
		t.Fatalf("late client advance should be a no-op, got %v", err)
	}
	snap := env.controller.Snapshot()
	if snap.Level == nil || snap.Level.QuestionIndex != 1 {
		t.Fatalf("session advanced wrongly: %+v", snap.Level)
	}
	if snap.Level.Score != 20 {
		t.Fatalf("score = %d, a raced advance must not grade twice", snap.Level.Score)
	}
}

func TestNotificationsDrainOnce(t *testing.T) {
	env := newTestEnv(t)
	env.passLevelPerfect(t, 1)
	env.passLevelPerfect(t, 2)

	first := env.controller.Notifications()
	if len(first) == 0 {
		t.Fatal("expected notifications after badge unlocks")
	}
	if second := env.controller.Notifications(); len(second) != 0 {
		t.Fatalf("notifications drained twice: %v", second)
	}
}
