package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryEntry is one per-answer record, independent of any session lifetime.
type HistoryEntry struct {
	UserID       uuid.UUID
	QuizID       uuid.UUID
	QuestionText string
	TimeTakenMs  int64
	IsCorrect    bool
	PointsEarned int
	CreatedAt    time.Time
}

// HistoryRepository persists per-answer history rows.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository constructs a new history repository.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record appends one answer record.
func (r *HistoryRepository) Record(ctx context.Context, entry HistoryEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_history (user_id, quiz_id, question_text, time_taken_ms, is_correct, points_earned)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.UserID, entry.QuizID, entry.QuestionText, entry.TimeTakenMs, entry.IsCorrect, entry.PointsEarned,
	)
	if err != nil {
		return fmt.Errorf("record answer history: %w", err)
	}
	return nil
}

// ListByUser returns the most recent answer records for a user.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, quiz_id, question_text, time_taken_ms, is_correct, points_earned, created_at
		 FROM answer_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list answer history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.UserID, &e.QuizID, &e.QuestionText, &e.TimeTakenMs, &e.IsCorrect, &e.PointsEarned, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
