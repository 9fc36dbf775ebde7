package session

import "errors"

var (
	// ErrSessionNotFound covers unknown or expired PINs and documents deleted
	// mid-session. Always recoverable: the client re-enters a PIN.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPlayerNotFound is returned when a user acts before joining.
	ErrPlayerNotFound = errors.New("player not joined")
	// ErrNotHost guards host-only transitions.
	ErrNotHost = errors.New("only the host may drive the session")
	// ErrBadTransition is returned for a status change the state machine
	// forbids, including anything after FINISHED.
	ErrBadTransition = errors.New("invalid status transition")
	// ErrRoundClosed rejects submissions outside an open answer window.
	ErrRoundClosed = errors.New("answer window closed")
	// ErrRoundMismatch rejects submissions carrying a stale round id.
	ErrRoundMismatch = errors.New("stale round")
	// ErrAlreadyAnswered enforces one answer per player per round.
	ErrAlreadyAnswered = errors.New("round already answered")
	// ErrBuzzTaken means another player holds the buzzer this round.
	ErrBuzzTaken = errors.New("buzzer already claimed")
	// ErrBuzzLocked means the player buzzed incorrectly earlier this round.
	ErrBuzzLocked = errors.New("player locked out of the buzzer this round")
	// ErrBuzzMismatch means the judged player does not hold the buzzer.
	ErrBuzzMismatch = errors.New("player does not hold the buzzer")
	// ErrNotBuzzerRound rejects buzz attempts on non-buzzer questions.
	ErrNotBuzzerRound = errors.New("not a buzzer question")
	// ErrBuzzerRound rejects direct answers on buzzer questions.
	ErrBuzzerRound = errors.New("buzzer questions take no direct answers")
	// ErrPinExhausted is returned when PIN allocation keeps colliding.
	ErrPinExhausted = errors.New("could not allocate an unused pin")
)
