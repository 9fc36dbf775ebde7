package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuestionType discriminates how a question is answered.
type QuestionType string

const (
	// TypeChoice is answered by picking one of four fixed answer slots.
	TypeChoice QuestionType = "CHOICE"
	// TypeTyping is answered by free text matched against the expected answer.
	TypeTyping QuestionType = "TYPING"
	// TypeBuzzer is resolved by first-responder claiming; the host judges the
	// spoken answer out of band.
	TypeBuzzer QuestionType = "BUZZER"
)

// ChoiceSlots is the fixed number of answer slots for CHOICE questions.
const ChoiceSlots = 4

var (
	ErrNotFound     = errors.New("quiz not found")
	ErrNoQuestions  = errors.New("quiz has no questions")
	ErrEmptyTitle   = errors.New("quiz title must not be empty")
)

// Question is a single quiz item. Answers and Correct apply to CHOICE,
// CorrectText to TYPING; BUZZER questions carry neither.
type Question struct {
	Text        string       `json:"text"`
	Image       string       `json:"image,omitempty"`
	Type        QuestionType `json:"type"`
	Answers     []string     `json:"answers,omitempty"`
	Correct     int          `json:"correct"`
	CorrectText string       `json:"correctText,omitempty"`
	Duration    int          `json:"duration"` // seconds
}

// Quiz is authored by a host and immutable once a session snapshots it.
type Quiz struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   uuid.UUID  `json:"ownerId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Snapshot is the frozen copy of a quiz embedded in a session document.
// A running game reads only the snapshot, never the live quiz, so concurrent
// edits cannot affect it.
type Snapshot struct {
	QuizID    uuid.UUID  `json:"quizId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Normalize fills defaults the editor historically left implicit: quizzes
// written before question types existed are CHOICE, and zero durations fall
// back to 20 seconds.
func (q *Quiz) Normalize() {
	for i := range q.Questions {
		if q.Questions[i].Type == "" {
			q.Questions[i].Type = TypeChoice
		}
		if q.Questions[i].Duration <= 0 {
			q.Questions[i].Duration = 20
		}
	}
}

// Validate checks the quiz is playable.
func (q *Quiz) Validate() error {
	if q.Title == "" {
		return ErrEmptyTitle
	}
	if len(q.Questions) == 0 {
		return ErrNoQuestions
	}
	for i, question := range q.Questions {
		switch question.Type {
		case TypeChoice:
			if len(question.Answers) != ChoiceSlots {
				return fmt.Errorf("question %d: CHOICE needs %d answer slots", i, ChoiceSlots)
			}
			if question.Correct < 0 || question.Correct >= ChoiceSlots {
				return fmt.Errorf("question %d: correct index out of range", i)
			}
		case TypeTyping:
			if question.CorrectText == "" {
				return fmt.Errorf("question %d: TYPING needs a correct text", i)
			}
		case TypeBuzzer:
			// no answer payload to validate
		default:
			return fmt.Errorf("question %d: unknown type %q", i, question.Type)
		}
		if question.Duration <= 0 {
			return fmt.Errorf("question %d: duration must be positive", i)
		}
	}
	return nil
}

// Snapshot deep-copies the quiz content for embedding in a session.
func (q *Quiz) Snapshot() Snapshot {
	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	for i := range questions {
		if len(q.Questions[i].Answers) > 0 {
			questions[i].Answers = append([]string(nil), q.Questions[i].Answers...)
		}
	}
	return Snapshot{
		QuizID:    q.ID,
		Title:     q.Title,
		Questions: questions,
	}
}
