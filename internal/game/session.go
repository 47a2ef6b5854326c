package game

import (
	"scameleon/internal/catalog"
)

// Feedback is the per-question grading display state
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackCorrect Feedback = "correct"
	FeedbackWrong   Feedback = "wrong"
)

// Session runs a single level attempt: questions in order, one answer
// each, score accumulating per correct answer. It is transient, discarded
// when the attempt ends, and never persists anything itself.
type Session struct {
	level *catalog.Level
	rules Rules

	index      int
	score      int
	heartsLost int

	feedback Feedback
	selected string
	done     bool
}

// Outcome is what a finished session hands to the progression controller
type Outcome struct {
	LevelID    int
	Score      int
	PerfectRun bool
}

// NewSession starts an attempt at the given level
func NewSession(level *catalog.Level, rules Rules) *Session {
	return &Session{level: level, rules: rules}
}

// Level returns the level under attempt
func (s *Session) Level() *catalog.Level {
	return s.level
}

// Question returns the question currently presented, nil once the
// session is done.
func (s *Session) Question() *catalog.Question {
	if s.done || s.index >= len(s.level.Questions) {
		return nil
	}
	return &s.level.Questions[s.index]
}

// QuestionIndex returns the zero-based position of the current question
func (s *Session) QuestionIndex() int {
	return s.index
}

// Score returns the running score
func (s *Session) Score() int {
	return s.score
}

// HeartsLost returns the hearts lost during this attempt
func (s *Session) HeartsLost() int {
	return s.heartsLost
}

// FeedbackState returns the grading state being displayed, and the
// submitted option key it applies to.
func (s *Session) FeedbackState() (Feedback, string) {
	return s.feedback, s.selected
}

// AwaitingAdvance reports whether feedback is showing and the session is
// waiting to move on.
func (s *Session) AwaitingAdvance() bool {
	return s.feedback != FeedbackNone
}

// Submit grades an answer to the current question. A submission while
// feedback is already showing is ignored, which makes double taps
// harmless. Returns whether the submission was accepted and whether it
// was correct; a wrong answer is permanent for that question.
func (s *Session) Submit(optionKey string) (accepted, correct bool) {
	if s.done || s.feedback != FeedbackNone {
		return false, false
	}
	question := s.Question()
	if question == nil {
		return false, false
	}
	s.selected = optionKey
	if optionKey == question.Correct {
		s.score += s.rules.PointsPerQuestion
		s.feedback = FeedbackCorrect
		return true, true
	}
	s.heartsLost++
	s.feedback = FeedbackWrong
	return true, false
}

// Advance clears the feedback display and moves to the next question, or
// finalizes if the last question was just graded. Returns the outcome
// when the session finished, nil otherwise. A perfect run requires the
// score to land exactly on the pass score with no hearts lost; the rule
// is deliberate equality, tied to the fixed per-question scoring.
func (s *Session) Advance() *Outcome {
	if s.done || s.feedback == FeedbackNone {
		return nil
	}
	s.feedback = FeedbackNone
	s.selected = ""
	s.index++
	if s.index < len(s.level.Questions) {
		return nil
	}
	s.done = true
	return &Outcome{
		LevelID:    s.level.ID,
		Score:      s.score,
		PerfectRun: s.score == s.rules.PassScore && s.heartsLost == 0,
	}
}
