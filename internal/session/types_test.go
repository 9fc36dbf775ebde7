package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohoot/live-server/internal/quiz"
)

func TestLeaderboardOrdering(t *testing.T) {
	sess := NewSession("123456", uuid.New(), quiz.Quiz{}, 0)

	a := uuid.New().String()
	b := uuid.New().String()
	c := uuid.New().String()
	// alpha and charlie joined within the same millisecond; the sequence
	// number, not the timestamp, breaks their tie.
	sess.Players[a] = &PlayerRecord{Nickname: "alpha", Score: 700, JoinedAt: 1, JoinOrder: 1}
	sess.Players[b] = &PlayerRecord{Nickname: "bravo", Score: 1500, JoinedAt: 2, JoinOrder: 2}
	sess.Players[c] = &PlayerRecord{Nickname: "charlie", Score: 700, JoinedAt: 1, JoinOrder: 3}

	ranked := sess.Leaderboard()
	require.Len(t, ranked, 3)
	assert.Equal(t, "bravo", ranked[0].Nickname)
	assert.Equal(t, "alpha", ranked[1].Nickname)
	assert.Equal(t, "charlie", ranked[2].Nickname)

	again := sess.Leaderboard()
	assert.Equal(t, ranked, again)
}

func TestCloneIsDeep(t *testing.T) {
	hostID := uuid.New()
	playerID := uuid.New()
	q := quiz.Quiz{
		ID:    uuid.New(),
		Title: "capitals",
		Questions: []quiz.Question{
			{Text: "Capital of France?", Type: quiz.TypeChoice, Answers: []string{"Paris", "Lyon", "Nice", "Lille"}, Correct: 0, Duration: 20},
		},
	}

	sess := NewSession("654321", hostID, q, 100)
	idx := 2
	sess.Players[playerID.String()] = &PlayerRecord{Nickname: "dana", Score: 500, LastAnswerIdx: &idx}
	sess.BuzzedPlayer = &BuzzClaim{UserID: playerID, Timestamp: 42}
	sess.LockedPlayers = map[string]bool{playerID.String(): true}

	clone := sess.Clone()

	clone.Players[playerID.String()].Score = 9999
	*clone.Players[playerID.String()].LastAnswerIdx = 0
	clone.BuzzedPlayer.Timestamp = 0
	delete(clone.LockedPlayers, playerID.String())
	clone.QuizSnapshot.Questions[0].Answers[0] = "Marseille"

	assert.Equal(t, 500, sess.Players[playerID.String()].Score)
	assert.Equal(t, 2, *sess.Players[playerID.String()].LastAnswerIdx)
	assert.Equal(t, int64(42), sess.BuzzedPlayer.Timestamp)
	assert.True(t, sess.LockedPlayers[playerID.String()])
	assert.Equal(t, "Paris", sess.QuizSnapshot.Questions[0].Answers[0])
}

func TestCurrentQuestionBounds(t *testing.T) {
	sess := NewSession("111111", uuid.New(), quiz.Quiz{Questions: []quiz.Question{{Text: "q1"}}}, 0)

	q, ok := sess.CurrentQuestion()
	assert.True(t, ok)
	assert.Equal(t, "q1", q.Text)

	sess.CurrentQuestionIndex = 1
	_, ok = sess.CurrentQuestion()
	assert.False(t, ok)

	sess.CurrentQuestionIndex = -1
	_, ok = sess.CurrentQuestion()
	assert.False(t, ok)
}
