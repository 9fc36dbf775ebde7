package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohoot/live-server/internal/quiz"
	"github.com/mohoot/live-server/internal/scoring"
	"github.com/mohoot/live-server/internal/stats"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type gameFixture struct {
	engine *Engine
	store  *SnapshotStore
	stats  *stats.Aggregator
	clock  *fakeClock
	hostID uuid.UUID
	mr     *miniredis.Miniredis
}

func newGameFixture(t *testing.T, questions []quiz.Question) *gameFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewSnapshotStore(client, "test-app", time.Hour, zerolog.Nop())
	aggregator := stats.NewAggregator(client, "test-app", zerolog.Nop())
	scorer := scoring.NewEngine(scoring.DefaultConfig())

	clock := &fakeClock{t: time.Date(2025, 11, 2, 19, 0, 0, 0, time.UTC)}
	hostID := uuid.New()

	q := quiz.Quiz{ID: uuid.New(), OwnerID: hostID, Title: "fixture", Questions: questions}
	sess := NewSession("777777", hostID, q, clock.Now().UnixMilli())
	require.NoError(t, store.Save(context.Background(), sess))

	engine := NewEngine(sess, store, scorer, aggregator, nil, 0, zerolog.Nop())
	engine.now = clock.Now

	return &gameFixture{engine: engine, store: store, stats: aggregator, clock: clock, hostID: hostID, mr: mr}
}

func choiceQuestions() []quiz.Question {
	return []quiz.Question{
		{Text: "Capital of France?", Type: quiz.TypeChoice, Answers: []string{"Paris", "Lyon", "Nice", "Lille"}, Correct: 0, Duration: 20},
		{Text: "Capital of Japan?", Type: quiz.TypeChoice, Answers: []string{"Osaka", "Tokyo", "Kyoto", "Nagoya"}, Correct: 1, Duration: 20},
	}
}

func (f *gameFixture) join(t *testing.T, nickname string) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := f.engine.Join(context.Background(), userID, nickname, "")
	require.NoError(t, err)
	return userID
}

func intPtr(v int) *int { return &v }

func TestJoinRejoinPreservesProgress(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	playerID := f.join(t, "alice")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	result, err := f.engine.SubmitAnswer(ctx, playerID, 1, intPtr(0), "")
	require.NoError(t, err)
	require.True(t, result.Correct)

	// Reconnect mid-round with a new nickname.
	sess, err := f.engine.Join(ctx, playerID, "alice2", "")
	require.NoError(t, err)

	rec, ok := sess.Player(playerID)
	require.True(t, ok)
	assert.Equal(t, "alice2", rec.Nickname)
	assert.Equal(t, result.TotalScore, rec.Score)
	assert.Equal(t, sess.RoundID, rec.LastAnsweredRoundID)

	// The answered marker survived, so the second device cannot re-answer.
	_, err = f.engine.SubmitAnswer(ctx, playerID, 1, intPtr(0), "")
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestNewPlayersOnlyJoinInLobby(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	f.join(t, "alice")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	_, err = f.engine.Join(ctx, uuid.New(), "late", "")
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestJoinAssignsSequentialOrder(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")

	// A rejoin keeps the original position.
	sess, err := f.engine.Join(ctx, alice, "alice", "")
	require.NoError(t, err)

	a, ok := sess.Player(alice)
	require.True(t, ok)
	b, ok := sess.Player(bob)
	require.True(t, ok)
	assert.Equal(t, int64(1), a.JoinOrder)
	assert.Equal(t, int64(2), b.JoinOrder)
}

func TestHostOnlyTransitions(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()
	playerID := f.join(t, "alice")

	_, err := f.engine.Start(ctx, playerID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = f.engine.Advance(ctx, playerID)
	assert.ErrorIs(t, err, ErrNotHost)
	err = f.engine.End(ctx, playerID)
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestStartOpensFirstRound(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	sess, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	assert.Equal(t, StatusQuestion, sess.Status)
	assert.Equal(t, 0, sess.CurrentQuestionIndex)
	assert.Equal(t, int64(1), sess.RoundID)
	assert.Equal(t, f.clock.Now().UnixMilli(), sess.StartTime)
	assert.Equal(t, sess.StartTime+20_000, sess.EndTime)

	// Starting twice is rejected.
	_, err = f.engine.Start(ctx, f.hostID)
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestSubmitAnswerScoring(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	// Half the 20s window remaining.
	f.clock.Advance(10 * time.Second)

	result, err := f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 750, result.Awarded)
	assert.Equal(t, 750, result.TotalScore)

	wrong, err := f.engine.SubmitAnswer(ctx, bob, 1, intPtr(2), "")
	require.NoError(t, err)
	assert.False(t, wrong.Correct)
	assert.Equal(t, 0, wrong.Awarded)
}

func TestSubmitAnswerGuards(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")

	// Before the game starts.
	_, err := f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	assert.ErrorIs(t, err, ErrRoundClosed)

	_, err = f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	// Stale round id.
	_, err = f.engine.SubmitAnswer(ctx, alice, 0, intPtr(0), "")
	assert.ErrorIs(t, err, ErrRoundMismatch)

	// Unknown player.
	_, err = f.engine.SubmitAnswer(ctx, uuid.New(), 1, intPtr(0), "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	// Past the deadline.
	f.clock.Advance(21 * time.Second)
	_, err = f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	assert.ErrorIs(t, err, ErrRoundClosed)
}

func TestSubmitAnswerRetriesAfterSaveFailure(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)

	// Redis goes away mid-submit; the answer must not stick.
	f.mr.SetError("connection refused")
	_, err = f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyAnswered)

	rec, ok := f.engine.sess.Player(alice)
	require.True(t, ok)
	assert.Equal(t, 0, rec.Score)
	assert.Nil(t, rec.LastAnswerIdx)
	assert.Equal(t, int64(0), rec.LastAnsweredRoundID)

	// A retry after Redis recovers lands exactly once.
	f.mr.SetError("")
	result, err := f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 750, result.Awarded)
	assert.Equal(t, 750, result.TotalScore)
}

func TestTypingAnswerMatching(t *testing.T) {
	f := newGameFixture(t, []quiz.Question{
		{Text: "Capital of France?", Type: quiz.TypeTyping, CorrectText: "Paris", Duration: 20},
	})
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	result, err := f.engine.SubmitAnswer(ctx, alice, 1, nil, "  paris ")
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 1000, result.Awarded)

	wrong, err := f.engine.SubmitAnswer(ctx, bob, 1, nil, "Lyon")
	require.NoError(t, err)
	assert.False(t, wrong.Correct)
}

func TestFullGameFlow(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")

	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	_, err = f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, bob, 1, intPtr(3), "")
	require.NoError(t, err)

	sess, err := f.engine.RevealLeaderboard(ctx, f.hostID)
	require.NoError(t, err)
	assert.Equal(t, StatusLeaderboard, sess.Status)

	sess, err = f.engine.Advance(ctx, f.hostID)
	require.NoError(t, err)
	assert.Equal(t, StatusQuestion, sess.Status)
	assert.Equal(t, 1, sess.CurrentQuestionIndex)
	assert.Equal(t, int64(2), sess.RoundID)

	f.clock.Advance(10 * time.Second)
	_, err = f.engine.SubmitAnswer(ctx, alice, 2, intPtr(1), "")
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, bob, 2, intPtr(1), "")
	require.NoError(t, err)

	_, err = f.engine.RevealLeaderboard(ctx, f.hostID)
	require.NoError(t, err)

	sess, err = f.engine.Advance(ctx, f.hostID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, sess.Status)

	ranked := sess.Leaderboard()
	require.Len(t, ranked, 2)
	assert.Equal(t, "alice", ranked[0].Nickname)
	assert.Equal(t, 1500, ranked[0].Score)
	assert.Equal(t, "bob", ranked[1].Nickname)
	assert.Equal(t, 750, ranked[1].Score)

	// Nothing moves out of FINISHED.
	_, err = f.engine.Advance(ctx, f.hostID)
	assert.ErrorIs(t, err, ErrBadTransition)
	_, err = f.engine.RevealLeaderboard(ctx, f.hostID)
	assert.ErrorIs(t, err, ErrBadTransition)

	aliceTotals, err := f.stats.Totals(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliceTotals.TotalGamesPlayed)
	assert.Equal(t, int64(1), aliceTotals.TotalGamesWon)
	assert.Equal(t, int64(2), aliceTotals.TotalQuestionsAnswered)
	assert.Equal(t, int64(2), aliceTotals.TotalCorrectAnswers)
	assert.Equal(t, int64(1500), aliceTotals.TotalScore)

	bobTotals, err := f.stats.Totals(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobTotals.TotalGamesPlayed)
	assert.Equal(t, int64(0), bobTotals.TotalGamesWon)
	assert.Equal(t, int64(1), bobTotals.TotalIncorrectAnswers)
	assert.Equal(t, int64(750), bobTotals.TotalScore)
}

func TestStatsSettleExactlyOnce(t *testing.T) {
	f := newGameFixture(t, []quiz.Question{
		{Text: "only", Type: quiz.TypeChoice, Answers: []string{"a", "b", "c", "d"}, Correct: 0, Duration: 20},
	})
	ctx := context.Background()

	alice := f.join(t, "alice")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	require.NoError(t, err)
	_, err = f.engine.RevealLeaderboard(ctx, f.hostID)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, f.hostID)
	require.NoError(t, err)

	// Ending an already finished game must not settle again.
	require.NoError(t, f.engine.End(ctx, f.hostID))

	totals, err := f.stats.Totals(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.TotalGamesPlayed)
	assert.Equal(t, int64(1), totals.TotalGamesWon)
}

func TestZeroScoreTieCountsAsWin(t *testing.T) {
	f := newGameFixture(t, []quiz.Question{
		{Text: "only", Type: quiz.TypeChoice, Answers: []string{"a", "b", "c", "d"}, Correct: 0, Duration: 20},
	})
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	// Nobody scores, so everyone shares the top score of zero.
	_, err = f.engine.SubmitAnswer(ctx, alice, 1, intPtr(1), "")
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, bob, 1, intPtr(2), "")
	require.NoError(t, err)

	_, err = f.engine.RevealLeaderboard(ctx, f.hostID)
	require.NoError(t, err)
	sess, err := f.engine.Advance(ctx, f.hostID)
	require.NoError(t, err)
	require.Equal(t, StatusFinished, sess.Status)

	for _, id := range []uuid.UUID{alice, bob} {
		totals, err := f.stats.Totals(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), totals.TotalGamesPlayed)
		assert.Equal(t, int64(1), totals.TotalGamesWon)
	}
}

func TestBuzzerFlow(t *testing.T) {
	f := newGameFixture(t, []quiz.Question{
		{Text: "Name the seventh planet.", Type: quiz.TypeBuzzer, Duration: 20},
	})
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Second)
	claim, err := f.engine.Buzz(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, claim.UserID)

	// The loser learns who holds the buzzer.
	holder, err := f.engine.Buzz(ctx, bob)
	assert.ErrorIs(t, err, ErrBuzzTaken)
	require.NotNil(t, holder)
	assert.Equal(t, alice, holder.UserID)

	// Wrong answer: lock alice, reopen for bob.
	sess, err := f.engine.LockBuzzer(ctx, f.hostID, alice)
	require.NoError(t, err)
	assert.Nil(t, sess.BuzzedPlayer)
	assert.True(t, sess.LockedPlayers[alice.String()])

	_, err = f.engine.Buzz(ctx, alice)
	assert.ErrorIs(t, err, ErrBuzzLocked)

	f.clock.Advance(5 * time.Second)
	claim, err = f.engine.Buzz(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, bob, claim.UserID)

	// 10s of the 20s window remained when bob buzzed; judging later does
	// not change the award.
	f.clock.Advance(4 * time.Second)
	result, err := f.engine.AwardBuzzer(ctx, f.hostID, bob)
	require.NoError(t, err)
	assert.Equal(t, 750, result.Awarded)
	assert.Equal(t, 750, result.TotalScore)
}

func TestBuzzerGuards(t *testing.T) {
	f := newGameFixture(t, []quiz.Question{
		{Text: "buzz", Type: quiz.TypeBuzzer, Duration: 20},
	})
	ctx := context.Background()

	alice := f.join(t, "alice")
	bob := f.join(t, "bob")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	// Direct answers are not taken on buzzer questions.
	_, err = f.engine.SubmitAnswer(ctx, alice, 1, intPtr(0), "")
	assert.ErrorIs(t, err, ErrBuzzerRound)

	// Judging with no claim outstanding.
	_, err = f.engine.AwardBuzzer(ctx, f.hostID, alice)
	assert.ErrorIs(t, err, ErrBuzzMismatch)

	_, err = f.engine.Buzz(ctx, alice)
	require.NoError(t, err)

	// Judging the wrong player.
	_, err = f.engine.AwardBuzzer(ctx, f.hostID, bob)
	assert.ErrorIs(t, err, ErrBuzzMismatch)
	_, err = f.engine.LockBuzzer(ctx, f.hostID, bob)
	assert.ErrorIs(t, err, ErrBuzzMismatch)

	// Players do not judge.
	_, err = f.engine.AwardBuzzer(ctx, alice, alice)
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestBuzzOnChoiceRoundRejected(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	_, err = f.engine.Buzz(ctx, alice)
	assert.ErrorIs(t, err, ErrNotBuzzerRound)
}

func TestBuzzerStateClearsOnNextRound(t *testing.T) {
	f := newGameFixture(t, []quiz.Question{
		{Text: "buzz one", Type: quiz.TypeBuzzer, Duration: 20},
		{Text: "buzz two", Type: quiz.TypeBuzzer, Duration: 20},
	})
	ctx := context.Background()

	alice := f.join(t, "alice")
	_, err := f.engine.Start(ctx, f.hostID)
	require.NoError(t, err)

	_, err = f.engine.Buzz(ctx, alice)
	require.NoError(t, err)
	_, err = f.engine.LockBuzzer(ctx, f.hostID, alice)
	require.NoError(t, err)

	_, err = f.engine.RevealLeaderboard(ctx, f.hostID)
	require.NoError(t, err)
	sess, err := f.engine.Advance(ctx, f.hostID)
	require.NoError(t, err)

	assert.Nil(t, sess.BuzzedPlayer)
	assert.Empty(t, sess.LockedPlayers)

	// The lock from the previous round does not carry over.
	_, err = f.engine.Buzz(ctx, alice)
	require.NoError(t, err)
}

func TestEndDeletesSessionAndResume(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")

	pin, err := f.store.Resume(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "777777", pin)

	require.NoError(t, f.engine.End(ctx, f.hostID))

	_, err = f.store.Load(ctx, "777777")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.store.Resume(ctx, alice)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLeaveForfeits(t *testing.T) {
	f := newGameFixture(t, choiceQuestions())
	ctx := context.Background()

	alice := f.join(t, "alice")

	sess, err := f.engine.Leave(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, sess.Players)

	_, err = f.engine.Leave(ctx, alice)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = f.store.Resume(ctx, alice)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
