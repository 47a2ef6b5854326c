package game

import "scameleon/internal/catalog"

// Snapshot is the full controller state as served to clients. The active
// question never includes its correct key; it is revealed together with
// the explanation only while feedback for that question is showing.
type Snapshot struct {
	View  View  `json:"view"`
	Modal Modal `json:"modal,omitempty"`

	Hearts        int  `json:"hearts"`
	HeartsMax     int  `json:"heartsMax"`
	RefillSeconds int  `json:"refillSeconds"`
	RefillReady   bool `json:"refillReady"`

	GameFinished  bool `json:"gameFinished"`
	Synced        bool `json:"synced"`
	PendingWrites int  `json:"pendingWrites"`

	Worlds       []WorldSnapshot `json:"worlds"`
	CurrentWorld int             `json:"currentWorld,omitempty"`
	ModalWorld   int             `json:"modalWorld,omitempty"`

	Briefing *LevelSnapshot `json:"briefing,omitempty"`
	Level    *ActiveLevel   `json:"level,omitempty"`

	Badges []string `json:"badges"`
}

// WorldSnapshot is one world on the world-select screen
type WorldSnapshot struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Theme       string          `json:"theme"`
	Description string          `json:"description"`
	Playable    bool            `json:"playable"`
	Completed   bool            `json:"completed"`
	Levels      []LevelSnapshot `json:"levels"`
}

// LevelSnapshot is one level entry on a level map
type LevelSnapshot struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Unlocked  bool   `json:"unlocked"`
	BestScore int    `json:"bestScore"`
	Passed    bool   `json:"passed"`
}

// ActiveLevel is the in-level session state
type ActiveLevel struct {
	ID            int           `json:"id"`
	Title         string        `json:"title"`
	QuestionIndex int           `json:"questionIndex"`
	QuestionCount int           `json:"questionCount"`
	Score         int           `json:"score"`
	HeartsLost    int           `json:"heartsLost"`
	Question      *QuestionView `json:"question,omitempty"`
	Feedback      *FeedbackView `json:"feedback,omitempty"`
}

// QuestionView is a question as shown to the player
type QuestionView struct {
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// Option is one answer choice as shown to the player
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// FeedbackView reveals the grading of a submitted answer
type FeedbackView struct {
	State       Feedback `json:"state"`
	Selected    string   `json:"selected"`
	CorrectKey  string   `json:"correctKey"`
	Explanation string   `json:"explanation"`
}

// Snapshot renders the controller's current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	snap := Snapshot{
		View:          c.view,
		Modal:         c.modal,
		Hearts:        c.lives.Hearts(),
		HeartsMax:     c.rules.HeartsMax,
		GameFinished:  c.progress.GameFinished,
		Synced:        c.outbox.Synced(),
		PendingWrites: c.outbox.PendingWrites(),
		Badges:        c.badges.Held(),
	}

	if deadline := c.lives.Deadline(); deadline != nil {
		now := c.now()
		snap.RefillSeconds = int(c.lives.Remaining(now).Seconds())
		snap.RefillReady = !now.Before(*deadline)
	}

	snap.Worlds = make([]WorldSnapshot, 0, len(c.catalog.Worlds))
	for i := range c.catalog.Worlds {
		snap.Worlds = append(snap.Worlds, c.worldSnapshot(&c.catalog.Worlds[i]))
	}

	if c.view == ViewLevelMap || c.view == ViewInLevel {
		snap.CurrentWorld = c.worldID
	}
	if c.modal == ModalWorldIntro || c.modal == ModalWorldComplete {
		snap.ModalWorld = c.modalWorld
	}
	if c.modal == ModalLevelBriefing {
		if level, ok := c.catalog.Level(c.briefingLevel); ok {
			briefing := c.levelSnapshot(level)
			snap.Briefing = &briefing
		}
	}
	if c.session != nil {
		snap.Level = c.activeLevel()
	}
	return snap
}

func (c *Controller) worldSnapshot(world *catalog.World) WorldSnapshot {
	ws := WorldSnapshot{
		ID:          world.ID,
		Name:        world.Name,
		Theme:       world.Theme,
		Description: world.Description,
		Playable:    c.worldPlayable(world.ID),
		Completed:   true,
		Levels:      make([]LevelSnapshot, 0, len(world.Levels)),
	}
	for i := range world.Levels {
		ls := c.levelSnapshot(&world.Levels[i])
		if !ls.Passed {
			ws.Completed = false
		}
		ws.Levels = append(ws.Levels, ls)
	}
	return ws
}

func (c *Controller) levelSnapshot(level *catalog.Level) LevelSnapshot {
	score := c.progress.LevelScores[level.ID]
	return LevelSnapshot{
		ID:        level.ID,
		Title:     level.Title,
		Unlocked:  c.progress.HasLevel(level.ID),
		BestScore: score,
		Passed:    score >= c.rules.PassScore,
	}
}

func (c *Controller) activeLevel() *ActiveLevel {
	s := c.session
	active := &ActiveLevel{
		ID:            s.Level().ID,
		Title:         s.Level().Title,
		QuestionIndex: s.QuestionIndex(),
		QuestionCount: len(s.Level().Questions),
		Score:         s.Score(),
		HeartsLost:    s.HeartsLost(),
	}
	question := s.Question()
	if question == nil {
		return active
	}
	view := &QuestionView{Prompt: question.Prompt}
	for _, opt := range question.Options {
		view.Options = append(view.Options, Option{Key: opt.Key, Text: opt.Text})
	}
	active.Question = view

	if state, selected := s.FeedbackState(); state != FeedbackNone {
		active.Feedback = &FeedbackView{
			State:       state,
			Selected:    selected,
			CorrectKey:  question.Correct,
			Explanation: question.Explanation,
		}
	}
	return active
}
