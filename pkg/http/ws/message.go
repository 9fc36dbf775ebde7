package ws

import "encoding/json"

// MessageType constants for the WebSocket protocol.
const (
	// Client -> Server
	TypeCreateSession     = "create_session"
	TypeJoinSession       = "join_session"
	TypeResumeSession     = "resume_session"
	TypeLeaveSession      = "leave_session"
	TypeStartGame         = "start_game"
	TypeRevealLeaderboard = "reveal_leaderboard"
	TypeAdvance           = "advance"
	TypeEndSession        = "end_session"
	TypeSubmitAnswer      = "submit_answer"
	TypeBuzz              = "buzz"
	TypeAwardBuzzer       = "award_buzzer"
	TypeLockBuzzer        = "lock_buzzer"

	// Server -> Client
	TypeSessionCreated  = "session_created"
	TypeSessionSnapshot = "session_snapshot"
	TypeAnswerResult    = "answer_result"
	TypeBuzzResult      = "buzz_result"
	TypeJudgmentResult  = "judgment_result"
	TypeSessionEnded    = "session_ended"
	TypeError           = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type CreateSessionPayload struct {
	QuizID string `json:"quiz_id"`
}

type JoinSessionPayload struct {
	PIN      string `json:"pin"`
	Nickname string `json:"nickname"`
}

type ResumeSessionPayload struct {
	PIN string `json:"pin,omitempty"` // empty: look up the stored resume PIN
}

type LeaveSessionPayload struct {
	PIN string `json:"pin"`
}

type HostCommandPayload struct {
	PIN string `json:"pin"`
}

type SubmitAnswerPayload struct {
	PIN         string `json:"pin"`
	RoundID     int64  `json:"round_id"`
	AnswerIndex *int   `json:"answer_index,omitempty"` // CHOICE
	AnswerText  string `json:"answer_text,omitempty"`  // TYPING
}

type BuzzPayload struct {
	PIN     string `json:"pin"`
	RoundID int64  `json:"round_id"`
}

type JudgmentPayload struct {
	PIN      string `json:"pin"`
	PlayerID string `json:"player_id"`
}

// Server Messages (outgoing)

type SessionCreatedPayload struct {
	PIN string `json:"pin"`
}

// SessionSnapshotPayload carries the full session document; clients derive
// their entire view from it.
type SessionSnapshotPayload struct {
	Session json.RawMessage `json:"session"`
}

type AnswerResultPayload struct {
	PIN        string `json:"pin"`
	RoundID    int64  `json:"round_id"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"total_score"`
}

type BuzzResultPayload struct {
	PIN      string `json:"pin"`
	RoundID  int64  `json:"round_id"`
	Accepted bool   `json:"accepted"`
	HolderID string `json:"holder_id"`
}

type JudgmentResultPayload struct {
	PIN      string `json:"pin"`
	RoundID  int64  `json:"round_id"`
	PlayerID string `json:"player_id"`
	Awarded  int    `json:"awarded"`
	Locked   bool   `json:"locked"`
}

type SessionEndedPayload struct {
	PIN    string `json:"pin"`
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
