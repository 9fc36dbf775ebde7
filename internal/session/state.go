package session

// Status is the lifecycle state of a game session. All transitions are
// host-initiated; players only observe.
type Status string

const (
	// StatusLobby is the initial state: players may join, the host has not
	// started the game.
	StatusLobby Status = "LOBBY"
	// StatusQuestion is an open answer window for the current question.
	StatusQuestion Status = "QUESTION"
	// StatusLeaderboard shows scores between questions; the question index
	// does not move here.
	StatusLeaderboard Status = "LEADERBOARD"
	// StatusFinished is terminal.
	StatusFinished Status = "FINISHED"
)

var transitions = map[Status][]Status{
	StatusLobby:       {StatusQuestion},
	StatusQuestion:    {StatusLeaderboard},
	StatusLeaderboard: {StatusQuestion, StatusFinished},
	StatusFinished:    {},
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether the status is one of the enumerated states.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
