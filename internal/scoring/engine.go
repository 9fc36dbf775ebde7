package scoring

import (
	"math"
	"strings"
	"time"
)

// Config holds configurable scoring constants. Deployments have shipped with
// a base of 500 and a base of 5; the constant is configuration, not code.
type Config struct {
	BaseScore int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{BaseScore: 500}
}

// Engine computes authoritative scores for timed answers.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config Config) *Engine {
	if config.BaseScore == 0 {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// Base returns the configured base reward.
func (e *Engine) Base() int {
	return e.config.BaseScore
}

// Score computes points for a single answer.
// Reward when correct: base + base * timeRemaining/duration, rounded to the
// nearest integer, with timeRemaining clamped to [0, duration]. Answering
// the instant the round opens yields 2*base; answering exactly at the
// deadline yields base. Incorrect answers yield 0.
func (e *Engine) Score(isCorrect bool, timeRemaining, duration time.Duration) int {
	if !isCorrect || duration <= 0 {
		return 0
	}

	if timeRemaining < 0 {
		timeRemaining = 0
	}
	if timeRemaining > duration {
		timeRemaining = duration
	}

	ratio := float64(timeRemaining) / float64(duration)
	return int(math.Round(float64(e.config.BaseScore) * (1 + ratio)))
}

// MatchTyping reports whether a typed answer matches the expected text.
// Matching is case-insensitive and ignores surrounding whitespace.
func MatchTyping(submitted, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(expected))
}
