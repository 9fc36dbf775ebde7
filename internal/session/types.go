package session

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mohoot/live-server/internal/quiz"
)

// AnswerNone is the LastAnswerIdx sentinel for answers that carry no choice
// index (TYPING submissions, buzzer awards).
const AnswerNone = -1

// BuzzClaim names the single player holding the buzzer this round.
type BuzzClaim struct {
	UserID    uuid.UUID `json:"uid"`
	Timestamp int64     `json:"timestamp"` // unix millis
}

// PlayerRecord is one player's slice of the session document. The record is
// written only by operations acting for that player; Score never decreases
// within a session.
type PlayerRecord struct {
	Nickname string `json:"nickname"`
	Photo    string `json:"photo,omitempty"`
	Score    int    `json:"score"`
	// LastAnswerIdx is the CHOICE index of the last answer, AnswerNone for
	// non-choice answers, nil when the player has not answered yet.
	LastAnswerIdx *int `json:"lastAnswerIdx"`
	// LastAnsweredRoundID equals RoundID when the player has answered the
	// current round. This field, not any client-side flag, is the canonical
	// "already answered" check; it survives reloads and reconnects.
	LastAnsweredRoundID int64 `json:"lastAnsweredRoundId"`
	JoinedAt            int64 `json:"joinedAt"` // unix millis
	// JoinOrder is the session-wide join sequence number. Unlike JoinedAt it
	// is unique per player, so leaderboard tie-breaks are deterministic.
	JoinOrder int64 `json:"joinOrder"`
}

// Session is the shared document coordinating one game, keyed by PIN. The
// engine owning it is the only writer; everyone else consumes snapshots.
type Session struct {
	PIN                  string                   `json:"pin"`
	HostID               uuid.UUID                `json:"hostId"`
	QuizID               uuid.UUID                `json:"quizId"`
	QuizSnapshot         quiz.Snapshot            `json:"quizSnapshot"`
	Status               Status                   `json:"status"`
	CurrentQuestionIndex int                      `json:"currentQuestionIndex"`
	// RoundID increases strictly each time a question opens, letting clients
	// detect a fresh round independent of status re-deliveries.
	RoundID   int64 `json:"roundId"`
	StartTime int64 `json:"startTime,omitempty"` // unix millis, after pre-roll
	EndTime   int64 `json:"endTime,omitempty"`   // unix millis
	Players   map[string]*PlayerRecord `json:"players"`
	// BuzzedPlayer is set by at most one player per round in BUZZER mode.
	BuzzedPlayer *BuzzClaim `json:"buzzedPlayer,omitempty"`
	// LockedPlayers holds users excluded from buzzing again this round.
	LockedPlayers map[string]bool `json:"lockedPlayers,omitempty"`
	CreatedAt     int64           `json:"createdAt"`
	// JoinCounter feeds PlayerRecord.JoinOrder. It only ever increments, so
	// a leave does not recycle an earlier player's position.
	JoinCounter int64 `json:"joinCounter"`
	// StatsRecorded guards the one-shot FINISHED stat settlement.
	StatsRecorded bool `json:"statsRecorded"`
}

// NewSession builds a fresh LOBBY session around a frozen quiz copy.
func NewSession(pin string, hostID uuid.UUID, q quiz.Quiz, nowMillis int64) *Session {
	return &Session{
		PIN:          pin,
		HostID:       hostID,
		QuizID:       q.ID,
		QuizSnapshot: q.Snapshot(),
		Status:       StatusLobby,
		Players:      make(map[string]*PlayerRecord),
		CreatedAt:    nowMillis,
	}
}

// CurrentQuestion returns the open question, if the index is in range.
func (s *Session) CurrentQuestion() (quiz.Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.QuizSnapshot.Questions) {
		return quiz.Question{}, false
	}
	return s.QuizSnapshot.Questions[s.CurrentQuestionIndex], true
}

// Player returns the record for a user id, if joined.
func (s *Session) Player(userID uuid.UUID) (*PlayerRecord, bool) {
	rec, ok := s.Players[userID.String()]
	return rec, ok
}

// MaxScore returns the highest score across all players, 0 when empty.
func (s *Session) MaxScore() int {
	max := 0
	for _, rec := range s.Players {
		if rec.Score > max {
			max = rec.Score
		}
	}
	return max
}

// RankedPlayer is a leaderboard row.
type RankedPlayer struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// Leaderboard returns players sorted by score descending. The sort is
// stable with join order breaking ties.
func (s *Session) Leaderboard() []RankedPlayer {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return s.Players[ids[i]].JoinOrder < s.Players[ids[j]].JoinOrder
	})
	sort.SliceStable(ids, func(i, j int) bool {
		return s.Players[ids[i]].Score > s.Players[ids[j]].Score
	})

	ranked := make([]RankedPlayer, len(ids))
	for i, id := range ids {
		ranked[i] = RankedPlayer{
			UserID:   id,
			Nickname: s.Players[id].Nickname,
			Score:    s.Players[id].Score,
		}
	}
	return ranked
}

// Clone deep-copies the session for handing out beyond the engine lock.
func (s *Session) Clone() *Session {
	out := *s

	out.Players = make(map[string]*PlayerRecord, len(s.Players))
	for id, rec := range s.Players {
		cp := *rec
		if rec.LastAnswerIdx != nil {
			idx := *rec.LastAnswerIdx
			cp.LastAnswerIdx = &idx
		}
		out.Players[id] = &cp
	}

	if s.BuzzedPlayer != nil {
		claim := *s.BuzzedPlayer
		out.BuzzedPlayer = &claim
	}

	if s.LockedPlayers != nil {
		out.LockedPlayers = make(map[string]bool, len(s.LockedPlayers))
		for id := range s.LockedPlayers {
			out.LockedPlayers[id] = true
		}
	}

	questions := make([]quiz.Question, len(s.QuizSnapshot.Questions))
	copy(questions, s.QuizSnapshot.Questions)
	for i := range questions {
		if len(questions[i].Answers) > 0 {
			questions[i].Answers = append([]string(nil), questions[i].Answers...)
		}
	}
	out.QuizSnapshot.Questions = questions

	return &out
}

// AnswerResult is returned to the submitting player with the computed
// outcome for the round.
type AnswerResult struct {
	RoundID    int64 `json:"roundId"`
	Correct    bool  `json:"correct"`
	Awarded    int   `json:"awarded"`
	TotalScore int   `json:"totalScore"`
}
