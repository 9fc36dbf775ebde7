package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Hash fields backing the per-user summary document. Every mutation is an
// atomic increment so concurrent sessions, devices and tabs for the same
// user never lose updates.
const (
	fieldGamesPlayed       = "games_played"
	fieldGamesWon          = "games_won"
	fieldQuestionsAnswered = "questions_answered"
	fieldCorrectAnswers    = "correct_answers"
	fieldIncorrectAnswers  = "incorrect_answers"
	fieldTotalScore        = "total_score"
	fieldPlaytimeSeconds   = "playtime_seconds"
)

// Totals is the client-facing view of a user's running counters. Fields that
// were never incremented read as zero.
type Totals struct {
	TotalGamesPlayed       int64 `json:"totalGamesPlayed"`
	TotalGamesWon          int64 `json:"totalGamesWon"`
	TotalQuestionsAnswered int64 `json:"totalQuestionsAnswered"`
	TotalCorrectAnswers    int64 `json:"totalCorrectAnswers"`
	TotalIncorrectAnswers  int64 `json:"totalIncorrectAnswers"`
	TotalScore             int64 `json:"totalScore"`
	TotalPlaytimeSeconds   int64 `json:"totalPlaytime"`
}

// Aggregator maintains per-user running totals in Redis.
type Aggregator struct {
	redis  *redis.Client
	appID  string
	logger zerolog.Logger
}

// NewAggregator constructs a stats aggregator.
func NewAggregator(redisClient *redis.Client, appID string, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		redis:  redisClient,
		appID:  appID,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

func (a *Aggregator) key(userID uuid.UUID) string {
	return fmt.Sprintf("artifacts:%s:users:%s:playerStats:summary", a.appID, userID.String())
}

// RecordGamePlayed bumps the games-played counter.
func (a *Aggregator) RecordGamePlayed(ctx context.Context, userID uuid.UUID) error {
	return a.incr(ctx, userID, fieldGamesPlayed, 1)
}

// RecordGameWon bumps the games-won counter.
func (a *Aggregator) RecordGameWon(ctx context.Context, userID uuid.UUID) error {
	return a.incr(ctx, userID, fieldGamesWon, 1)
}

// RecordQuestionAnswered bumps the answered counter plus the matching
// correct/incorrect counter, atomically.
func (a *Aggregator) RecordQuestionAnswered(ctx context.Context, userID uuid.UUID, correct bool) error {
	outcome := fieldIncorrectAnswers
	if correct {
		outcome = fieldCorrectAnswers
	}

	pipe := a.redis.TxPipeline()
	pipe.HIncrBy(ctx, a.key(userID), fieldQuestionsAnswered, 1)
	pipe.HIncrBy(ctx, a.key(userID), outcome, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record question answered: %w", err)
	}
	return nil
}

// AddScore adds earned points to the lifetime score.
func (a *Aggregator) AddScore(ctx context.Context, userID uuid.UUID, points int) error {
	if points <= 0 {
		return nil
	}
	return a.incr(ctx, userID, fieldTotalScore, int64(points))
}

// AddPlaytime adds played seconds to the lifetime playtime.
func (a *Aggregator) AddPlaytime(ctx context.Context, userID uuid.UUID, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	return a.incr(ctx, userID, fieldPlaytimeSeconds, seconds)
}

func (a *Aggregator) incr(ctx context.Context, userID uuid.UUID, field string, by int64) error {
	if err := a.redis.HIncrBy(ctx, a.key(userID), field, by).Err(); err != nil {
		return fmt.Errorf("increment %s: %w", field, err)
	}
	return nil
}

// Totals reads the current counters, merging zero defaults for fields that
// have never been initialized.
func (a *Aggregator) Totals(ctx context.Context, userID uuid.UUID) (Totals, error) {
	data, err := a.redis.HGetAll(ctx, a.key(userID)).Result()
	if err != nil {
		return Totals{}, fmt.Errorf("fetch stats: %w", err)
	}

	return Totals{
		TotalGamesPlayed:       parseCounter(data[fieldGamesPlayed]),
		TotalGamesWon:          parseCounter(data[fieldGamesWon]),
		TotalQuestionsAnswered: parseCounter(data[fieldQuestionsAnswered]),
		TotalCorrectAnswers:    parseCounter(data[fieldCorrectAnswers]),
		TotalIncorrectAnswers:  parseCounter(data[fieldIncorrectAnswers]),
		TotalScore:             parseCounter(data[fieldTotalScore]),
		TotalPlaytimeSeconds:   parseCounter(data[fieldPlaytimeSeconds]),
	}, nil
}

func parseCounter(val string) int64 {
	if val == "" {
		return 0
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
