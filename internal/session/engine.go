package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mohoot/live-server/internal/db/repository"
	"github.com/mohoot/live-server/internal/metrics"
	"github.com/mohoot/live-server/internal/quiz"
	"github.com/mohoot/live-server/internal/scoring"
	"github.com/mohoot/live-server/internal/stats"
)

// AnswerRecorder appends per-answer history rows. A nil recorder disables
// history without disabling gameplay.
type AnswerRecorder interface {
	Record(ctx context.Context, entry repository.HistoryEntry) error
}

// Engine owns one session document and serializes every mutation to it.
// All game rules live here; handlers validate transport concerns only.
type Engine struct {
	mu      sync.Mutex
	sess    *Session
	store   *SnapshotStore
	scoring *scoring.Engine
	stats   *stats.Aggregator
	history AnswerRecorder
	logger  zerolog.Logger
	preRoll time.Duration
	now     func() time.Time
}

// NewEngine wraps an existing session document. preRoll is the delay between
// a question opening and its answer window starting.
func NewEngine(
	sess *Session,
	store *SnapshotStore,
	scorer *scoring.Engine,
	aggregator *stats.Aggregator,
	history AnswerRecorder,
	preRoll time.Duration,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		sess:    sess,
		store:   store,
		scoring: scorer,
		stats:   aggregator,
		history: history,
		logger:  logger.With().Str("component", "session_engine").Str("pin", sess.PIN).Logger(),
		preRoll: preRoll,
		now:     time.Now,
	}
}

// PIN returns the session's PIN.
func (e *Engine) PIN() string {
	return e.sess.PIN
}

// HostID returns the session host.
func (e *Engine) HostID() uuid.UUID {
	return e.sess.HostID
}

// Snapshot returns a deep copy of the current document.
func (e *Engine) Snapshot() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone()
}

// Join adds a player to the session, or refreshes an existing record on
// rejoin. Rejoining keeps the accumulated score and the answered marker, so
// a reload mid-round cannot produce a second answer.
func (e *Engine) Join(ctx context.Context, userID uuid.UUID, nickname, photo string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, rejoining := e.sess.Players[userID.String()]
	if rejoining {
		rec.Nickname = nickname
		if photo != "" {
			rec.Photo = photo
		}
	} else {
		if e.sess.Status != StatusLobby {
			return nil, ErrBadTransition
		}
		e.sess.JoinCounter++
		e.sess.Players[userID.String()] = &PlayerRecord{
			Nickname:  nickname,
			Photo:     photo,
			JoinedAt:  e.nowMillis(),
			JoinOrder: e.sess.JoinCounter,
		}
	}

	if err := e.store.Save(ctx, e.sess); err != nil {
		if !rejoining {
			delete(e.sess.Players, userID.String())
			e.sess.JoinCounter--
		}
		return nil, err
	}
	if !rejoining {
		metrics.PlayersJoined.Inc()
	}
	if err := e.store.SetResume(ctx, userID, e.sess.PIN); err != nil {
		e.logger.Warn().Err(err).Stringer("user_id", userID).Msg("failed to set resume key")
	}
	return e.sess.Clone(), nil
}

// Leave removes a player and their resume key. Leaving mid-game forfeits
// the score; a disconnect without leaving keeps the record for resume.
func (e *Engine) Leave(ctx context.Context, userID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sess.Players[userID.String()]; !ok {
		return nil, ErrPlayerNotFound
	}
	delete(e.sess.Players, userID.String())

	if err := e.store.ClearResume(ctx, userID); err != nil {
		e.logger.Warn().Err(err).Stringer("user_id", userID).Msg("failed to clear resume key")
	}
	if err := e.store.Save(ctx, e.sess); err != nil {
		return nil, err
	}
	return e.sess.Clone(), nil
}

// Start opens the first question. Host only, LOBBY only.
func (e *Engine) Start(ctx context.Context, actorID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireHost(actorID); err != nil {
		return nil, err
	}
	if !CanTransition(e.sess.Status, StatusQuestion) {
		return nil, ErrBadTransition
	}

	e.openQuestion(0)
	if err := e.store.Save(ctx, e.sess); err != nil {
		return nil, err
	}
	return e.sess.Clone(), nil
}

// RevealLeaderboard closes the answer window and shows standings.
func (e *Engine) RevealLeaderboard(ctx context.Context, actorID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireHost(actorID); err != nil {
		return nil, err
	}
	if !CanTransition(e.sess.Status, StatusLeaderboard) {
		return nil, ErrBadTransition
	}

	e.sess.Status = StatusLeaderboard
	if err := e.store.Save(ctx, e.sess); err != nil {
		return nil, err
	}
	return e.sess.Clone(), nil
}

// Advance moves from the leaderboard to the next question, or finishes the
// game when no questions remain.
func (e *Engine) Advance(ctx context.Context, actorID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireHost(actorID); err != nil {
		return nil, err
	}

	next := e.sess.CurrentQuestionIndex + 1
	if next < len(e.sess.QuizSnapshot.Questions) {
		if !CanTransition(e.sess.Status, StatusQuestion) {
			return nil, ErrBadTransition
		}
		e.openQuestion(next)
	} else {
		if !CanTransition(e.sess.Status, StatusFinished) {
			return nil, ErrBadTransition
		}
		e.finish(ctx)
	}

	if err := e.store.Save(ctx, e.sess); err != nil {
		return nil, err
	}
	return e.sess.Clone(), nil
}

// End terminates the session from any state and deletes the document. Every
// consumer sees the tombstone; resume keys are cleared so nobody is offered
// a dead PIN.
func (e *Engine) End(ctx context.Context, actorID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireHost(actorID); err != nil {
		return err
	}

	if e.sess.Status != StatusFinished {
		e.finish(ctx)
	}
	for id := range e.sess.Players {
		userID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		if err := e.store.ClearResume(ctx, userID); err != nil {
			e.logger.Warn().Err(err).Str("user_id", id).Msg("failed to clear resume key")
		}
	}
	return e.store.Delete(ctx, e.sess.PIN, "ended_by_host")
}

// SubmitAnswer validates and scores one answer for the current round.
func (e *Engine) SubmitAnswer(ctx context.Context, userID uuid.UUID, roundID int64, answerIdx *int, answerText string) (AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Status != StatusQuestion {
		return AnswerResult{}, ErrRoundClosed
	}
	if roundID != e.sess.RoundID {
		return AnswerResult{}, ErrRoundMismatch
	}

	rec, ok := e.sess.Players[userID.String()]
	if !ok {
		return AnswerResult{}, ErrPlayerNotFound
	}

	q, ok := e.sess.CurrentQuestion()
	if !ok {
		return AnswerResult{}, ErrRoundClosed
	}
	if q.Type == quiz.TypeBuzzer {
		return AnswerResult{}, ErrBuzzerRound
	}

	nowMs := e.nowMillis()
	if nowMs < e.sess.StartTime || nowMs > e.sess.EndTime {
		return AnswerResult{}, ErrRoundClosed
	}
	if rec.LastAnsweredRoundID == e.sess.RoundID {
		return AnswerResult{}, ErrAlreadyAnswered
	}

	var correct bool
	lastIdx := AnswerNone
	switch q.Type {
	case quiz.TypeTyping:
		correct = scoring.MatchTyping(answerText, q.CorrectText)
	default:
		if answerIdx != nil {
			lastIdx = *answerIdx
			correct = *answerIdx == q.Correct
		}
	}

	duration := time.Duration(q.Duration) * time.Second
	remaining := time.Duration(e.sess.EndTime-nowMs) * time.Millisecond
	awarded := e.scoring.Score(correct, remaining, duration)

	// The answer counts only once persisted. A failed Save rolls the
	// record back so a client retry is not rejected as a duplicate.
	prev := *rec
	rec.Score += awarded
	rec.LastAnswerIdx = &lastIdx
	rec.LastAnsweredRoundID = e.sess.RoundID

	if err := e.store.Save(ctx, e.sess); err != nil {
		*rec = prev
		return AnswerResult{}, err
	}

	metrics.AnswersSubmitted.WithLabelValues(metrics.CorrectLabel(correct)).Inc()
	e.recordAnswer(ctx, userID, q, duration-remaining, correct, awarded)

	return AnswerResult{
		RoundID:    e.sess.RoundID,
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: rec.Score,
	}, nil
}

// Buzz claims the buzzer for the current round. Exactly one concurrent
// caller succeeds; losers learn who holds it.
func (e *Engine) Buzz(ctx context.Context, userID uuid.UUID) (*BuzzClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Status != StatusQuestion {
		return nil, ErrRoundClosed
	}
	q, ok := e.sess.CurrentQuestion()
	if !ok || q.Type != quiz.TypeBuzzer {
		return nil, ErrNotBuzzerRound
	}
	if _, ok := e.sess.Players[userID.String()]; !ok {
		return nil, ErrPlayerNotFound
	}
	if e.sess.LockedPlayers[userID.String()] {
		return nil, ErrBuzzLocked
	}

	metrics.BuzzAttempts.Inc()
	if e.sess.BuzzedPlayer != nil {
		metrics.BuzzConflicts.Inc()
		holder := *e.sess.BuzzedPlayer
		return &holder, ErrBuzzTaken
	}

	claim := BuzzClaim{UserID: userID, Timestamp: e.nowMillis()}
	holder, err := e.store.ClaimBuzz(ctx, e.sess.PIN, claim)
	if err != nil {
		if holder != nil {
			metrics.BuzzConflicts.Inc()
			e.sess.BuzzedPlayer = holder
		}
		return holder, err
	}

	e.sess.BuzzedPlayer = holder
	return holder, nil
}

// AwardBuzzer marks the buzzing player's verbal answer correct. Points are
// computed from the moment the buzzer was claimed, not the moment the host
// judged; talking slowly costs nothing.
func (e *Engine) AwardBuzzer(ctx context.Context, actorID, playerID uuid.UUID) (AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, q, err := e.judgeable(actorID, playerID)
	if err != nil {
		return AnswerResult{}, err
	}

	duration := time.Duration(q.Duration) * time.Second
	remaining := time.Duration(e.sess.EndTime-e.sess.BuzzedPlayer.Timestamp) * time.Millisecond
	awarded := e.scoring.Score(true, remaining, duration)

	lastIdx := AnswerNone
	prev := *rec
	rec.Score += awarded
	rec.LastAnswerIdx = &lastIdx
	rec.LastAnsweredRoundID = e.sess.RoundID

	if err := e.store.Save(ctx, e.sess); err != nil {
		*rec = prev
		return AnswerResult{}, err
	}

	metrics.AnswersSubmitted.WithLabelValues(metrics.CorrectLabel(true)).Inc()
	e.recordAnswer(ctx, playerID, q, duration-remaining, true, awarded)

	return AnswerResult{
		RoundID:    e.sess.RoundID,
		Correct:    true,
		Awarded:    awarded,
		TotalScore: rec.Score,
	}, nil
}

// LockBuzzer marks the buzzing player's answer wrong. The player is barred
// from buzzing again this round and the buzzer reopens for everyone else.
func (e *Engine) LockBuzzer(ctx context.Context, actorID, playerID uuid.UUID) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, q, err := e.judgeable(actorID, playerID)
	if err != nil {
		return nil, err
	}

	if e.sess.LockedPlayers == nil {
		e.sess.LockedPlayers = make(map[string]bool)
	}
	claim := e.sess.BuzzedPlayer
	e.sess.LockedPlayers[playerID.String()] = true
	e.sess.BuzzedPlayer = nil

	if err := e.store.Save(ctx, e.sess); err != nil {
		delete(e.sess.LockedPlayers, playerID.String())
		e.sess.BuzzedPlayer = claim
		return nil, err
	}

	metrics.AnswersSubmitted.WithLabelValues(metrics.CorrectLabel(false)).Inc()
	e.recordAnswer(ctx, playerID, q, 0, false, 0)

	return e.sess.Clone(), nil
}

func (e *Engine) judgeable(actorID, playerID uuid.UUID) (*PlayerRecord, quiz.Question, error) {
	if err := e.requireHost(actorID); err != nil {
		return nil, quiz.Question{}, err
	}
	if e.sess.Status != StatusQuestion {
		return nil, quiz.Question{}, ErrRoundClosed
	}
	q, ok := e.sess.CurrentQuestion()
	if !ok || q.Type != quiz.TypeBuzzer {
		return nil, quiz.Question{}, ErrNotBuzzerRound
	}
	if e.sess.BuzzedPlayer == nil || e.sess.BuzzedPlayer.UserID != playerID {
		return nil, quiz.Question{}, ErrBuzzMismatch
	}
	rec, ok := e.sess.Players[playerID.String()]
	if !ok {
		return nil, quiz.Question{}, ErrPlayerNotFound
	}
	return rec, q, nil
}

func (e *Engine) requireHost(actorID uuid.UUID) error {
	if actorID != e.sess.HostID {
		return ErrNotHost
	}
	return nil
}

// openQuestion starts a new round. The round id moves forward so stale
// submissions from the previous question cannot land here.
func (e *Engine) openQuestion(idx int) {
	q := e.sess.QuizSnapshot.Questions[idx]

	e.sess.Status = StatusQuestion
	e.sess.CurrentQuestionIndex = idx
	e.sess.RoundID++
	e.sess.StartTime = e.now().Add(e.preRoll).UnixMilli()
	e.sess.EndTime = e.sess.StartTime + int64(q.Duration)*1000
	e.sess.BuzzedPlayer = nil
	e.sess.LockedPlayers = nil
}

// finish settles the game exactly once: lifetime counters for every player,
// a win for everyone sharing the top score, playtime since the session was
// created. Ties all count as wins, including an all-zero board.
func (e *Engine) finish(ctx context.Context) {
	e.sess.Status = StatusFinished
	if e.sess.StatsRecorded {
		return
	}
	e.sess.StatsRecorded = true
	metrics.SessionsEnded.Inc()

	max := e.sess.MaxScore()
	playtime := (e.nowMillis() - e.sess.CreatedAt) / 1000
	for id, rec := range e.sess.Players {
		userID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		if err := e.stats.RecordGamePlayed(ctx, userID); err != nil {
			e.logger.Warn().Err(err).Str("user_id", id).Msg("failed to record game played")
		}
		if rec.Score == max {
			if err := e.stats.RecordGameWon(ctx, userID); err != nil {
				e.logger.Warn().Err(err).Str("user_id", id).Msg("failed to record game won")
			}
		}
		if err := e.stats.AddPlaytime(ctx, userID, playtime); err != nil {
			e.logger.Warn().Err(err).Str("user_id", id).Msg("failed to record playtime")
		}
	}
}

// recordAnswer updates lifetime counters and the answer history. Failures
// are logged and swallowed; a stats outage must not block gameplay.
func (e *Engine) recordAnswer(ctx context.Context, userID uuid.UUID, q quiz.Question, taken time.Duration, correct bool, awarded int) {
	if err := e.stats.RecordQuestionAnswered(ctx, userID, correct); err != nil {
		e.logger.Warn().Err(err).Stringer("user_id", userID).Msg("failed to record answer stats")
	}
	if err := e.stats.AddScore(ctx, userID, awarded); err != nil {
		e.logger.Warn().Err(err).Stringer("user_id", userID).Msg("failed to record score stats")
	}

	if e.history == nil {
		return
	}
	entry := repository.HistoryEntry{
		UserID:       userID,
		QuizID:       e.sess.QuizID,
		QuestionText: q.Text,
		TimeTakenMs:  taken.Milliseconds(),
		IsCorrect:    correct,
		PointsEarned: awarded,
	}
	if err := e.history.Record(ctx, entry); err != nil {
		e.logger.Warn().Err(err).Stringer("user_id", userID).Msg("failed to record answer history")
	}
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}
