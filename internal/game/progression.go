package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"scameleon/internal/catalog"
	"scameleon/internal/models"
)

var (
	// ErrInvalidTransition is returned when an operation is not legal in
	// the current state. The state is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrLockedOut is returned when an operation was blocked because the
	// player is out of hearts; the controller has moved to the lockout
	// view and callers should render it rather than an error.
	ErrLockedOut = errors.New("out of hearts")
)

// View is the controller's base screen
type View string

const (
	ViewWorldSelect View = "worldSelect"
	ViewLevelMap    View = "levelMap"
	ViewInLevel     View = "inLevel"
	ViewLockout     View = "lockout"
)

// Modal overlays the base view. Modals are mutually exclusive and each
// has exactly one dismissal action.
type Modal string

const (
	ModalNone          Modal = ""
	ModalWorldIntro    Modal = "worldIntro"
	ModalLevelBriefing Modal = "levelBriefing"
	ModalWorldComplete Modal = "worldComplete"
	ModalGameComplete  Modal = "gameComplete"
)

// ControllerConfig wires a controller's collaborators
type ControllerConfig struct {
	Rules   Rules
	Catalog *catalog.Catalog
	Store   ProgressStore
	Outbox  *Outbox

	// Now defaults to time.Now; tests inject a fake clock.
	Now func() time.Time

	// OnGameFinished fires once, in its own goroutine, when the final
	// level is first completed.
	OnGameFinished func(userID int64)
}

// Controller is the per-user progression state machine. It owns the
// loaded progress record, the lives manager, the badge evaluator and at
// most one active level session. All durable mutations go through the
// outbox; in-memory state transitions never wait for persistence.
//
// HTTP requests for the same user may race, so every operation runs
// under the controller's mutex. There is still exactly one active level
// session per user.
type Controller struct {
	mu     sync.Mutex
	userID int64

	rules   Rules
	catalog *catalog.Catalog
	store   ProgressStore
	outbox  *Outbox
	now     func() time.Time
	onDone  func(userID int64)

	progress *models.GameProgress
	lives    *Lives
	badges   *Evaluator

	session       *Session
	sessionGen    int
	feedbackTimer *time.Timer

	view          View
	modal         Modal
	worldID       int
	modalWorld    int
	briefingLevel int

	// Where the player returns once a lockout ends.
	resumeView  View
	resumeWorld int

	tickerStop chan struct{}
	closed     bool
	lastActive time.Time
}

// NewController loads the user's stored progress and builds the state
// machine on top of it. The load is synchronous; a store failure here is
// the one persistence error that surfaces to the caller.
func NewController(userID int64, cfg ControllerConfig) (*Controller, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	progress, held, err := cfg.Store.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	c := &Controller{
		userID:   userID,
		rules:    cfg.Rules,
		catalog:  cfg.Catalog,
		store:    cfg.Store,
		outbox:   cfg.Outbox,
		now:      now,
		onDone:   cfg.OnGameFinished,
		progress: progress,
		view:     ViewWorldSelect,
	}
	c.lastActive = now()

	lives, patch := NewLives(cfg.Rules, progress.Hearts, progress.NextHeartTime, now())
	c.lives = lives
	c.syncLives()
	if !patch.IsEmpty() {
		c.enqueuePatch("normalize lives", patch)
	}

	c.badges = NewEvaluator(cfg.Catalog, cfg.Rules, held, func(badgeID string) {
		c.outbox.Enqueue("add badge "+badgeID, func() error {
			_, err := c.store.AddBadge(userID, badgeID)
			return err
		})
	})

	if c.lives.Depleted() {
		c.enterLockout(ViewWorldSelect, 0)
	}
	return c, nil
}

// UserID returns the user this controller belongs to
func (c *Controller) UserID() int64 {
	return c.userID
}

// LastActive returns when the controller last handled an operation
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// SelectWorld moves from world select into a world's level map, routing
// through the world intro modal the first time a world is entered.
func (c *Controller) SelectWorld(worldID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewWorldSelect || c.modal != ModalNone {
		return fmt.Errorf("%w: not on world select", ErrInvalidTransition)
	}
	if _, ok := c.catalog.World(worldID); !ok {
		return fmt.Errorf("%w: unknown world %d", ErrInvalidTransition, worldID)
	}
	if !c.worldPlayable(worldID) {
		return fmt.Errorf("%w: world %d is locked", ErrInvalidTransition, worldID)
	}

	if !c.progress.HasPlayedWorld(worldID) {
		c.modal = ModalWorldIntro
		c.modalWorld = worldID
		return nil
	}
	c.view = ViewLevelMap
	c.worldID = worldID
	return nil
}

// DismissIntro closes the world intro modal, records that the intro has
// been seen, and proceeds to the level map.
func (c *Controller) DismissIntro() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.modal != ModalWorldIntro {
		return fmt.Errorf("%w: no world intro showing", ErrInvalidTransition)
	}
	if c.progress.MarkWorldPlayed(c.modalWorld) {
		c.enqueuePatch("mark world played", c.playedWorldsPatch())
	}
	c.view = ViewLevelMap
	c.worldID = c.modalWorld
	c.modal = ModalNone
	return nil
}

// BackToWorlds leaves the level map for the world select screen
func (c *Controller) BackToWorlds() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewLevelMap || c.modal != ModalNone {
		return fmt.Errorf("%w: not on a level map", ErrInvalidTransition)
	}
	c.view = ViewWorldSelect
	return nil
}

// SelectLevel opens the briefing for an unlocked level on the current
// level map. With no hearts left the controller moves to lockout instead.
func (c *Controller) SelectLevel(levelID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewLevelMap || c.modal != ModalNone {
		return fmt.Errorf("%w: not on a level map", ErrInvalidTransition)
	}
	if c.lives.Depleted() {
		c.enterLockout(ViewLevelMap, c.worldID)
		return ErrLockedOut
	}
	world, ok := c.catalog.WorldOfLevel(levelID)
	if !ok || world.ID != c.worldID {
		return fmt.Errorf("%w: level %d is not on this map", ErrInvalidTransition, levelID)
	}
	if !c.progress.HasLevel(levelID) {
		return fmt.Errorf("%w: level %d is locked", ErrInvalidTransition, levelID)
	}
	c.modal = ModalLevelBriefing
	c.briefingLevel = levelID
	return nil
}

// StartLevel confirms the briefing and begins the level session
func (c *Controller) StartLevel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.modal != ModalLevelBriefing {
		return fmt.Errorf("%w: no level briefing showing", ErrInvalidTransition)
	}
	if c.lives.Depleted() {
		c.modal = ModalNone
		c.enterLockout(ViewLevelMap, c.worldID)
		return ErrLockedOut
	}
	level, ok := c.catalog.Level(c.briefingLevel)
	if !ok {
		return fmt.Errorf("%w: unknown level %d", ErrInvalidTransition, c.briefingLevel)
	}
	c.sessionGen++
	c.session = NewSession(level, c.rules)
	c.view = ViewInLevel
	c.modal = ModalNone
	return nil
}

// CancelBriefing closes the briefing and stays on the level map
func (c *Controller) CancelBriefing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.modal != ModalLevelBriefing {
		return fmt.Errorf("%w: no level briefing showing", ErrInvalidTransition)
	}
	c.modal = ModalNone
	return nil
}

// SubmitAnswer grades an answer to the active question. A wrong answer
// costs a heart immediately; the session advances after the feedback
// delay, or synchronously when the delay is zero. Submissions while
// feedback is showing are ignored.
func (c *Controller) SubmitAnswer(optionKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewInLevel || c.session == nil {
		return fmt.Errorf("%w: no active level", ErrInvalidTransition)
	}
	accepted, correct := c.session.Submit(optionKey)
	if !accepted {
		return nil
	}
	c.badges.RecordAnswer(correct)
	if !correct {
		patch, _ := c.lives.LoseLife(c.now())
		c.syncLives()
		c.enqueuePatch("lose life", patch)
	}

	if c.rules.FeedbackDelay <= 0 {
		c.advance()
		return nil
	}
	gen := c.sessionGen
	c.feedbackTimer = time.AfterFunc(c.rules.FeedbackDelay, func() {
		c.timerAdvance(gen)
	})
	return nil
}

// Advance is the client-driven path past the feedback display. The server
// timer fires the same transition, so a request that arrives after the
// timer is a harmless no-op.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewInLevel || c.session == nil {
		return fmt.Errorf("%w: no active level", ErrInvalidTransition)
	}
	if !c.session.AwaitingAdvance() {
		return nil
	}
	c.stopFeedbackTimer()
	c.advance()
	return nil
}

// ExitLevel abandons the active session. Transient state is discarded;
// hearts already lost stay lost, nothing else is recorded. Exiting with
// the hearts already empty lands in the lockout view, not the map.
func (c *Controller) ExitLevel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewInLevel || c.session == nil {
		return fmt.Errorf("%w: no active level", ErrInvalidTransition)
	}
	c.teardownSession()
	if c.lives.Depleted() {
		c.enterLockout(ViewLevelMap, c.worldID)
		return nil
	}
	c.view = ViewLevelMap
	return nil
}

// DismissModal closes a world-complete or game-complete modal and
// returns to world select.
func (c *Controller) DismissModal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.modal != ModalWorldComplete && c.modal != ModalGameComplete {
		return fmt.Errorf("%w: no completion modal showing", ErrInvalidTransition)
	}
	c.modal = ModalNone
	c.view = ViewWorldSelect
	return nil
}

// RefillNow refills hearts once the deadline has passed, without waiting
// for the next tick.
func (c *Controller) RefillNow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	refilled, patch := c.lives.RefillNow(c.now())
	if !refilled {
		return fmt.Errorf("%w: refill is not ready", ErrInvalidTransition)
	}
	c.applyRefill(patch)
	return nil
}

// Tick drives the refill countdown. The background ticker calls it every
// interval while a deadline is pending; tests call it directly.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	refilled, patch := c.lives.Tick(c.now())
	if refilled {
		c.applyRefill(patch)
	}
}

// Notifications drains the queued one-shot notifications
func (c *Controller) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	return c.badges.DrainNotifications()
}

// HeldBadges returns the badge ids the user holds
func (c *Controller) HeldBadges() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.badges.Held()
}

// Close tears the controller down: the refill ticker and any pending
// feedback timer are stopped so nothing fires into stale state. Durable
// progress has already been persisted incrementally; callers flush the
// outbox separately.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.teardownSession()
	c.stopTicker()
}

// advance moves the session past the feedback display and handles the
// consequences: lockout when hearts ran out, the outcome handler when the
// level finished. Caller holds the lock.
func (c *Controller) advance() {
	outcome := c.session.Advance()

	// Running out of hearts ends the attempt on the spot, even if this
	// answer would have finished the level.
	if c.lives.Depleted() {
		c.teardownSession()
		c.enterLockout(ViewLevelMap, c.worldID)
		return
	}
	if outcome != nil {
		c.handleOutcome(outcome)
	}
}

func (c *Controller) timerAdvance(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session == nil || gen != c.sessionGen {
		return
	}
	if !c.session.AwaitingAdvance() {
		return
	}
	c.advance()
}

// handleOutcome applies a finished level to the durable progress: best
// score, streaks and badges, unlocks, and the world/game completion
// modals. Caller holds the lock.
func (c *Controller) handleOutcome(o *Outcome) {
	c.teardownSession()
	c.view = ViewLevelMap

	if c.progress.RecordScore(o.LevelID, o.Score) {
		c.enqueuePatch("record score", c.levelScoresPatch())
	}
	c.badges.RecordRun(o.LevelID, o.PerfectRun)

	if o.Score < c.rules.PassScore {
		return
	}

	final := c.catalog.FinalLevel()
	if o.LevelID < final && c.progress.UnlockLevel(o.LevelID+1) {
		c.enqueuePatch("unlock level", c.unlockedLevelsPatch())
	}

	if o.LevelID == final {
		c.badges.Unlock(BadgeGuardian)
		if o.Score == c.rules.PassScore {
			c.badges.Unlock(BadgeTerminator)
		}
		if !c.progress.GameFinished {
			c.progress.GameFinished = true
			finished := true
			c.enqueuePatch("finish game", models.ProgressPatch{GameFinished: &finished})
			if c.onDone != nil {
				go c.onDone(c.userID)
			}
		}
		c.modal = ModalGameComplete
		return
	}

	if c.catalog.IsLastLevelOfWorld(o.LevelID) {
		world, ok := c.catalog.WorldOfLevel(o.LevelID)
		if ok {
			c.badges.UnlockWorld(world.ID)
			if c.progress.MarkWorldPlayed(world.ID) {
				c.enqueuePatch("mark world played", c.playedWorldsPatch())
			}
			c.modal = ModalWorldComplete
			c.modalWorld = world.ID
		}
	}
}

// worldPlayable implements the gating rule: the first world is always
// playable, a later world needs either a level already unlocked in it or
// every level of the previous world passed. Caller holds the lock.
func (c *Controller) worldPlayable(worldID int) bool {
	worlds := c.catalog.Worlds
	if len(worlds) > 0 && worlds[0].ID == worldID {
		return true
	}
	world, ok := c.catalog.World(worldID)
	if !ok {
		return false
	}
	for _, level := range world.Levels {
		if c.progress.HasLevel(level.ID) {
			return true
		}
	}
	var previous *catalog.World
	for i := range worlds {
		if worlds[i].ID == worldID && i > 0 {
			previous = &worlds[i-1]
		}
	}
	if previous == nil {
		return false
	}
	for _, level := range previous.Levels {
		if c.progress.LevelScores[level.ID] < c.rules.PassScore {
			return false
		}
	}
	return true
}

func (c *Controller) enterLockout(resume View, resumeWorld int) {
	c.resumeView = resume
	c.resumeWorld = resumeWorld
	c.view = ViewLockout
	c.modal = ModalNone
	c.startTicker()
}

func (c *Controller) applyRefill(patch models.ProgressPatch) {
	c.syncLives()
	c.enqueuePatch("refill hearts", patch)
	c.badges.AnnounceRefill()
	c.stopTicker()
	if c.view == ViewLockout {
		c.view = c.resumeView
		c.worldID = c.resumeWorld
		if c.view == "" {
			c.view = ViewWorldSelect
		}
	}
}

func (c *Controller) teardownSession() {
	c.sessionGen++
	c.session = nil
	c.stopFeedbackTimer()
}

func (c *Controller) stopFeedbackTimer() {
	if c.feedbackTimer != nil {
		c.feedbackTimer.Stop()
		c.feedbackTimer = nil
	}
}

func (c *Controller) startTicker() {
	if c.rules.TickInterval <= 0 || c.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop
	go func() {
		ticker := time.NewTicker(c.rules.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

func (c *Controller) stopTicker() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

// syncLives mirrors the lives manager into the progress record so
// snapshots and patches read one source.
func (c *Controller) syncLives() {
	c.progress.Hearts = c.lives.Hearts()
	c.progress.NextHeartTime = c.lives.Deadline()
}

func (c *Controller) touch() {
	c.lastActive = c.now()
}

// enqueuePatch hands a durable mutation to the outbox. Patches carry
// copies of any list and map fields, so later in-memory changes cannot
// leak into a queued write.
func (c *Controller) enqueuePatch(name string, patch models.ProgressPatch) {
	if patch.IsEmpty() {
		return
	}
	userID := c.userID
	store := c.store
	c.outbox.Enqueue(name, func() error {
		return store.SaveProgress(userID, patch)
	})
}

func (c *Controller) unlockedLevelsPatch() models.ProgressPatch {
	return models.ProgressPatch{
		UnlockedLevels: append([]int(nil), c.progress.UnlockedLevels...),
	}
}

func (c *Controller) playedWorldsPatch() models.ProgressPatch {
	return models.ProgressPatch{
		PlayedWorlds: append([]int(nil), c.progress.PlayedWorlds...),
	}
}

func (c *Controller) levelScoresPatch() models.ProgressPatch {
	scores := make(map[int]int, len(c.progress.LevelScores))
	for level, score := range c.progress.LevelScores {
		scores[level] = score
	}
	return models.ProgressPatch{LevelScores: scores}
}
