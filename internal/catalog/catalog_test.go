package catalog

import (
	"strings"
	"testing"
)

const validYAML = `
worlds:
  - id: 1
    theme: phishing
    name: Phishing Bay
    description: Spot fraudulent emails and links.
    levels:
      - id: 1
        title: First Look
        questions:
          - prompt: Which sender address is suspicious?
            options:
              - key: a
                text: support@yourbank.com
              - key: b
                text: support@y0urbank-secure.xyz
            correct: b
            explanation: Lookalike domains swap characters.
      - id: 2
        title: Link Check
        questions:
          - prompt: What should you do before clicking a link?
            options:
              - key: a
                text: Hover to inspect the real URL
              - key: b
                text: Click quickly before it expires
            correct: a
            explanation: Hovering reveals the true destination.
  - id: 2
    theme: romance
    name: Lonely Hearts
    description: Recognize romance scam patterns.
    levels:
      - id: 3
        title: Too Good To Be True
        questions:
          - prompt: A match asks for money after two days. What is it?
            options:
              - key: a
                text: True love
              - key: b
                text: A scam pattern
            correct: b
            explanation: Early money requests are a classic red flag.
badges:
  - id: world1
    name: Bay Watcher
    description: Completed Phishing Bay.
    icon: shield
    category: world
    world: 1
  - id: world2
    name: Heart Guard
    description: Completed Lonely Hearts.
    icon: heart
    category: world
    world: 2
`

func TestParseValidCatalog(t *testing.T) {
	cat, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := cat.FinalLevel(); got != 3 {
		t.Errorf("FinalLevel() = %d, want 3", got)
	}

	l, ok := cat.Level(2)
	if !ok || l.Title != "Link Check" {
		t.Errorf("Level(2) = %+v, ok=%v", l, ok)
	}

	w, ok := cat.WorldOfLevel(3)
	if !ok || w.ID != 2 {
		t.Errorf("WorldOfLevel(3) world = %+v, ok=%v", w, ok)
	}

	if !cat.IsLastLevelOfWorld(2) {
		t.Error("level 2 should close world 1")
	}
	if cat.IsLastLevelOfWorld(1) {
		t.Error("level 1 should not close world 1")
	}

	b, ok := cat.WorldBadge(1)
	if !ok || b.ID != "world1" {
		t.Errorf("WorldBadge(1) = %+v, ok=%v", b, ok)
	}
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "level id gap",
			mutate:  func(s string) string { return strings.Replace(s, "id: 3", "id: 4", 1) },
			wantErr: "out of sequence",
		},
		{
			name:    "duplicate level id",
			mutate:  func(s string) string { return strings.Replace(s, "id: 3", "id: 2", 1) },
			wantErr: "out of sequence",
		},
		{
			name:    "correct key not among options",
			mutate:  func(s string) string { return strings.Replace(s, "correct: a", "correct: z", 1) },
			wantErr: "not among options",
		},
		{
			name:    "missing world badge",
			mutate:  func(s string) string { return strings.Replace(s, "world: 2", "world: 1", 1) },
			wantErr: "no completion badge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(validYAML)))
			if err == nil {
				t.Fatal("Parse() should have failed")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScoring(t *testing.T) {
	cat, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// Each test level has a single question
	if err := cat.ValidateScoring(20, 20); err != nil {
		t.Errorf("ValidateScoring(20, 20) error = %v", err)
	}
	if err := cat.ValidateScoring(100, 20); err == nil {
		t.Error("ValidateScoring(100, 20) should fail for one-question levels")
	}
}
