package game

import "time"

// Rules holds the tunable game constants. Production uses DefaultRules;
// tests shrink the timers.
type Rules struct {
	HeartsMax         int
	RefillTime        time.Duration
	TickInterval      time.Duration
	PassScore         int
	PointsPerQuestion int

	// FeedbackDelay is how long answer feedback stays on screen before
	// the session advances. Zero means advance synchronously.
	FeedbackDelay time.Duration

	AnswerStreakTarget int
	PerfectRunTarget   int
}

// DefaultRules returns the production rule set
func DefaultRules() Rules {
	return Rules{
		HeartsMax:          5,
		RefillTime:         10 * time.Minute,
		TickInterval:       time.Second,
		PassScore:          100,
		PointsPerQuestion:  20,
		FeedbackDelay:      1500 * time.Millisecond,
		AnswerStreakTarget: 10,
		PerfectRunTarget:   5,
	}
}
