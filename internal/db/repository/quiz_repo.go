package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohoot/live-server/internal/quiz"
)

// QuizRepository contains DB helpers for host-authored quizzes.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository constructs a new quiz repository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Create persists a new quiz and returns its id.
func (r *QuizRepository) Create(ctx context.Context, q quiz.Quiz) (uuid.UUID, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal questions: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO quizzes (quiz_id, owner_id, title, questions) VALUES ($1, $2, $3, $4)`,
		q.ID, q.OwnerID, q.Title, questions,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create quiz: %w", err)
	}
	return q.ID, nil
}

// GetByID loads a quiz by id.
func (r *QuizRepository) GetByID(ctx context.Context, quizID uuid.UUID) (quiz.Quiz, error) {
	var (
		q         quiz.Quiz
		questions []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT quiz_id, owner_id, title, questions, created_at, updated_at
		 FROM quizzes WHERE quiz_id = $1`,
		quizID,
	).Scan(&q.ID, &q.OwnerID, &q.Title, &questions, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}

	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return quiz.Quiz{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	q.Normalize()
	return q, nil
}

// ListByOwner returns all quizzes owned by a user, newest first.
func (r *QuizRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]quiz.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT quiz_id, owner_id, title, questions, created_at, updated_at
		 FROM quizzes WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []quiz.Quiz
	for rows.Next() {
		var (
			q         quiz.Quiz
			questions []byte
		)
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.Title, &questions, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		if err := json.Unmarshal(questions, &q.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		q.Normalize()
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// Update replaces title and questions of a quiz owned by the given user.
func (r *QuizRepository) Update(ctx context.Context, q quiz.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET title = $3, questions = $4, updated_at = now()
		 WHERE quiz_id = $1 AND owner_id = $2`,
		q.ID, q.OwnerID, q.Title, questions,
	)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return quiz.ErrNotFound
	}
	return nil
}

// Delete removes a quiz owned by the given user.
func (r *QuizRepository) Delete(ctx context.Context, quizID, ownerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM quizzes WHERE quiz_id = $1 AND owner_id = $2`,
		quizID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return quiz.ErrNotFound
	}
	return nil
}
