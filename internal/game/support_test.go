package game

import (
	"sync"
	"testing"
	"time"

	"scameleon/internal/catalog"
	"scameleon/internal/models"
)

// Two worlds of two levels each, two questions per level, correct key
// always "a". Pass score for these tests is 40 (2 x 20).
const testCatalogYAML = `
worlds:
  - id: 1
    theme: phishing
    name: World One
    description: first world
    levels:
      - id: 1
        title: Level One
        questions: &qs
          - prompt: pick a
            options:
              - key: a
                text: right
              - key: b
                text: wrong
            correct: a
            explanation: a is right
          - prompt: pick a again
            options:
              - key: a
                text: right
              - key: b
                text: wrong
            correct: a
            explanation: still a
      - id: 2
        title: Level Two
        questions: *qs
  - id: 2
    theme: romance
    name: World Two
    description: second world
    levels:
      - id: 3
        title: Level Three
        questions: *qs
      - id: 4
        title: Level Four
        questions: *qs
badges:
  - id: streak10
    name: Sharp Eye
    description: answer streak
    icon: eye
    category: streak
  - id: clean5
    name: Flawless
    description: perfect run streak
    icon: sparkles
    category: streak
  - id: heartkeeper
    name: Heart Keeper
    description: perfect checkpoint run
    icon: heart
    category: streak
    level: 2
  - id: world1
    name: World One Done
    description: world one
    icon: anchor
    category: world
    world: 1
  - id: world2
    name: World Two Done
    description: world two
    icon: scales
    category: world
    world: 2
  - id: guardian
    name: Guardian
    description: game complete
    icon: trophy
    category: completion
  - id: terminator
    name: Terminator
    description: perfect finish
    icon: crown
    category: completion
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("failed to parse test catalog: %v", err)
	}
	return cat
}

// testRules shrinks the streak targets so the badge paths are reachable
// in short tests, and disables both timers: feedback advances
// synchronously and ticks are driven by hand.
func testRules() Rules {
	return Rules{
		HeartsMax:          2,
		RefillTime:         10 * time.Minute,
		TickInterval:       0,
		PassScore:          40,
		PointsPerQuestion:  20,
		FeedbackDelay:      0,
		AnswerStreakTarget: 3,
		PerfectRunTarget:   2,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory ProgressStore with the same merge semantics
// as the SQL repository.
type fakeStore struct {
	mu       sync.Mutex
	hearts   int
	progress map[int64]*models.GameProgress
	badges   map[int64][]string

	saveErr   error
	saveCalls int
	addCalls  int
}

func newFakeStore(defaultHearts int) *fakeStore {
	return &fakeStore{
		hearts:   defaultHearts,
		progress: make(map[int64]*models.GameProgress),
		badges:   make(map[int64][]string),
	}
}

func (s *fakeStore) Load(userID int64) (*models.GameProgress, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.progress[userID]
	progress := models.DefaultProgress(s.hearts)
	if ok {
		progress.Apply(patchFrom(stored))
	}
	return progress, append([]string(nil), s.badges[userID]...), nil
}

func (s *fakeStore) SaveProgress(userID int64, patch models.ProgressPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	stored, ok := s.progress[userID]
	if !ok {
		stored = models.DefaultProgress(s.hearts)
		s.progress[userID] = stored
	}
	stored.Apply(patch)
	return nil
}

func (s *fakeStore) AddBadge(userID int64, badgeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls++
	if s.saveErr != nil {
		return false, s.saveErr
	}
	for _, id := range s.badges[userID] {
		if id == badgeID {
			return false, nil
		}
	}
	s.badges[userID] = append(s.badges[userID], badgeID)
	return true, nil
}

func (s *fakeStore) stored(userID int64) *models.GameProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.progress[userID]
	if !ok {
		return nil
	}
	copy := models.DefaultProgress(s.hearts)
	copy.Apply(patchFrom(stored))
	return copy
}

func (s *fakeStore) storedBadges(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.badges[userID]...)
}

// patchFrom turns a full record into a patch setting every field, used
// to deep-copy records in and out of the fake.
func patchFrom(p *models.GameProgress) models.ProgressPatch {
	hearts := p.Hearts
	finished := p.GameFinished
	patch := models.ProgressPatch{
		Hearts:         &hearts,
		UnlockedLevels: p.UnlockedLevels,
		LevelScores:    p.LevelScores,
		PlayedWorlds:   p.PlayedWorlds,
		GameFinished:   &finished,
	}
	if p.NextHeartTime != nil {
		t := *p.NextHeartTime
		patch.NextHeartTime = &t
	} else {
		patch.ClearNextHeartTime = true
	}
	return patch
}

type testEnv struct {
	controller *Controller
	store      *fakeStore
	outbox     *Outbox
	clock      *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRules(t, testRules())
}

func newTestEnvWithRules(t *testing.T, rules Rules) *testEnv {
	t.Helper()
	store := newFakeStore(rules.HeartsMax)
	clock := newFakeClock()
	outbox := NewOutbox(64)
	t.Cleanup(outbox.Close)

	c, err := NewController(1, ControllerConfig{
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
	return &testEnv{controller: c, store: store, outbox: outbox, clock: clock}
}

// enterLevel navigates from wherever the controller is to an active
// session on the given level.
func (e *testEnv) enterLevel(t *testing.T, levelID int) {
	t.Helper()
	c := e.controller

	world, ok := testCatalog(t).WorldOfLevel(levelID)
	if !ok {
		t.Fatalf("no world for level %d", levelID)
	}
	snap := c.Snapshot()
	if snap.View == ViewLevelMap && snap.CurrentWorld != world.ID {
		if err := c.BackToWorlds(); err != nil {
			t.Fatalf("back to worlds: %v", err)
		}
		snap = c.Snapshot()
	}
	if snap.View == ViewWorldSelect {
		if err := c.SelectWorld(world.ID); err != nil {
			t.Fatalf("select world %d: %v", world.ID, err)
		}
		if c.Snapshot().Modal == ModalWorldIntro {
			if err := c.DismissIntro(); err != nil {
				t.Fatalf("dismiss intro: %v", err)
			}
		}
	}
	if err := c.SelectLevel(levelID); err != nil {
		t.Fatalf("select level %d: %v", levelID, err)
	}
	if err := c.StartLevel(); err != nil {
		t.Fatalf("start level %d: %v", levelID, err)
	}
}

// playLevel runs a full attempt with the given answers. The zero
// feedback delay makes each submission advance synchronously.
func (e *testEnv) playLevel(t *testing.T, levelID int, answers ...string) {
	t.Helper()
	e.enterLevel(t, levelID)
	for _, key := range answers {
		if err := e.controller.SubmitAnswer(key); err != nil {
			t.Fatalf("submit %q on level %d: %v", key, levelID, err)
		}
	}
}

// passLevelPerfect completes a level with every answer correct and
// dismisses any completion modal so the controller is ready for the next
// level.
func (e *testEnv) passLevelPerfect(t *testing.T, levelID int) {
	t.Helper()
	e.playLevel(t, levelID, "a", "a")
	snap := e.controller.Snapshot()
	if snap.Modal == ModalWorldComplete || snap.Modal == ModalGameComplete {
		if err := e.controller.DismissModal(); err != nil {
			t.Fatalf("dismiss completion modal: %v", err)
		}
	}
}
