package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Badge categories
const (
	CategoryStreak     = "streak"
	CategoryWorld      = "world"
	CategoryCompletion = "completion"
)

// Option is a single answer choice for a question
type Option struct {
	Key  string `yaml:"key"`
	Text string `yaml:"text"`
}

// Question is one quiz question with exactly one correct option
type Question struct {
	Prompt      string   `yaml:"prompt"`
	Options     []Option `yaml:"options"`
	Correct     string   `yaml:"correct"`
	Explanation string   `yaml:"explanation"`
}

// Level is an ordered question bank identified by a global level id
type Level struct {
	ID        int        `yaml:"id"`
	Title     string     `yaml:"title"`
	Questions []Question `yaml:"questions"`
}

// World is a themed, ordered group of levels
type World struct {
	ID          int     `yaml:"id"`
	Theme       string  `yaml:"theme"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Levels      []Level `yaml:"levels"`
}

// Badge is an achievement definition. World is set for world-completion
// badges; Level marks the checkpoint level for level-bound badges.
type Badge struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Category    string `yaml:"category"`
	World       int    `yaml:"world,omitempty"`
	Level       int    `yaml:"level,omitempty"`
}

// Catalog is the full static game configuration, loaded once at startup
// and immutable afterwards.
type Catalog struct {
	Worlds []World `yaml:"worlds"`
	Badges []Badge `yaml:"badges"`

	levelIndex map[int]*Level
	worldIndex map[int]*World
	levelWorld map[int]int
	badgeIndex map[string]*Badge
	finalLevel int
}

// Load reads and validates the catalog from a YAML file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	cat.buildIndexes()
	return &cat, nil
}

func (c *Catalog) validate() error {
	if len(c.Worlds) == 0 {
		return fmt.Errorf("no worlds defined")
	}

	sorted := sort.SliceIsSorted(c.Worlds, func(i, j int) bool {
		return c.Worlds[i].ID < c.Worlds[j].ID
	})
	if !sorted {
		return fmt.Errorf("worlds must be ordered by ascending id")
	}

	// Level ids across all worlds must form ascending contiguous blocks
	// partitioning 1..N with no gaps or overlap.
	next := 1
	for _, w := range c.Worlds {
		if len(w.Levels) == 0 {
			return fmt.Errorf("world %d has no levels", w.ID)
		}
		for _, l := range w.Levels {
			if l.ID != next {
				return fmt.Errorf("world %d: level id %d out of sequence, expected %d", w.ID, l.ID, next)
			}
			next++
			if err := validateLevel(l); err != nil {
				return err
			}
		}
	}

	return c.validateBadges()
}

func validateLevel(l Level) error {
	if l.Title == "" {
		return fmt.Errorf("level %d: missing title", l.ID)
	}
	if len(l.Questions) == 0 {
		return fmt.Errorf("level %d: no questions", l.ID)
	}
	for i, q := range l.Questions {
		if q.Prompt == "" {
			return fmt.Errorf("level %d question %d: missing prompt", l.ID, i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("level %d question %d: needs at least two options", l.ID, i+1)
		}
		seen := make(map[string]bool, len(q.Options))
		correctFound := false
		for _, opt := range q.Options {
			if opt.Key == "" || opt.Text == "" {
				return fmt.Errorf("level %d question %d: option with empty key or text", l.ID, i+1)
			}
			if seen[opt.Key] {
				return fmt.Errorf("level %d question %d: duplicate option key %q", l.ID, i+1, opt.Key)
			}
			seen[opt.Key] = true
			if opt.Key == q.Correct {
				correctFound = true
			}
		}
		if !correctFound {
			return fmt.Errorf("level %d question %d: correct key %q not among options", l.ID, i+1, q.Correct)
		}
	}
	return nil
}

func (c *Catalog) validateBadges() error {
	ids := make(map[string]bool, len(c.Badges))
	worldBadges := make(map[int]bool)
	maxLevel := 0
	for _, w := range c.Worlds {
		maxLevel += len(w.Levels)
	}

	for _, b := range c.Badges {
		if b.ID == "" || b.Name == "" {
			return fmt.Errorf("badge with empty id or name")
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate badge id %q", b.ID)
		}
		ids[b.ID] = true

		if b.Category == CategoryWorld {
			if _, ok := c.worldByID(b.World); !ok {
				return fmt.Errorf("badge %q references unknown world %d", b.ID, b.World)
			}
			worldBadges[b.World] = true
		}
		if b.Level != 0 && (b.Level < 1 || b.Level > maxLevel) {
			return fmt.Errorf("badge %q references unknown level %d", b.ID, b.Level)
		}
	}

	for _, w := range c.Worlds {
		if !worldBadges[w.ID] {
			return fmt.Errorf("world %d has no completion badge", w.ID)
		}
	}
	return nil
}

// ValidateScoring checks that every level's question bank yields exactly
// the pass score when answered perfectly, so the perfect-run equality rule
// cannot be overshot by construction.
func (c *Catalog) ValidateScoring(passScore, pointsPerQuestion int) error {
	for _, w := range c.Worlds {
		for _, l := range w.Levels {
			if got := len(l.Questions) * pointsPerQuestion; got != passScore {
				return fmt.Errorf("level %d: perfect score %d does not equal pass score %d", l.ID, got, passScore)
			}
		}
	}
	return nil
}

func (c *Catalog) worldByID(id int) (*World, bool) {
	for i := range c.Worlds {
		if c.Worlds[i].ID == id {
			return &c.Worlds[i], true
		}
	}
	return nil, false
}

func (c *Catalog) buildIndexes() {
	c.levelIndex = make(map[int]*Level)
	c.worldIndex = make(map[int]*World)
	c.levelWorld = make(map[int]int)
	c.badgeIndex = make(map[string]*Badge)

	for i := range c.Worlds {
		w := &c.Worlds[i]
		c.worldIndex[w.ID] = w
		for j := range w.Levels {
			l := &w.Levels[j]
			c.levelIndex[l.ID] = l
			c.levelWorld[l.ID] = w.ID
			if l.ID > c.finalLevel {
				c.finalLevel = l.ID
			}
		}
	}
	for i := range c.Badges {
		c.badgeIndex[c.Badges[i].ID] = &c.Badges[i]
	}
}

// Level returns the level with the given id
func (c *Catalog) Level(id int) (*Level, bool) {
	l, ok := c.levelIndex[id]
	return l, ok
}

// World returns the world with the given id
func (c *Catalog) World(id int) (*World, bool) {
	w, ok := c.worldIndex[id]
	return w, ok
}

// WorldOfLevel returns the world containing the given level
func (c *Catalog) WorldOfLevel(levelID int) (*World, bool) {
	wID, ok := c.levelWorld[levelID]
	if !ok {
		return nil, false
	}
	return c.worldIndex[wID], true
}

// Badge returns the badge definition with the given id
func (c *Catalog) Badge(id string) (*Badge, bool) {
	b, ok := c.badgeIndex[id]
	return b, ok
}

// WorldBadge returns the completion badge for the given world
func (c *Catalog) WorldBadge(worldID int) (*Badge, bool) {
	for i := range c.Badges {
		b := &c.Badges[i]
		if b.Category == CategoryWorld && b.World == worldID {
			return b, true
		}
	}
	return nil, false
}

// BadgesForLevel returns badges bound to the given checkpoint level
func (c *Catalog) BadgesForLevel(levelID int) []*Badge {
	var out []*Badge
	for i := range c.Badges {
		if c.Badges[i].Level == levelID {
			out = append(out, &c.Badges[i])
		}
	}
	return out
}

// FinalLevel returns the id of the last level in the game
func (c *Catalog) FinalLevel() int {
	return c.finalLevel
}

// IsLastLevelOfWorld reports whether the level closes out its world
func (c *Catalog) IsLastLevelOfWorld(levelID int) bool {
	w, ok := c.WorldOfLevel(levelID)
	if !ok {
		return false
	}
	return w.Levels[len(w.Levels)-1].ID == levelID
}
