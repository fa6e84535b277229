package postgres

import (
	"context"
	"fmt"

	"async-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizIndex stores listing records in quiz_index.
type QuizIndex struct {
	pool *pgxpool.Pool
}

func NewQuizIndex(pool *pgxpool.Pool) *QuizIndex {
	return &QuizIndex{pool: pool}
}

func (x *QuizIndex) Put(ctx context.Context, e domain.QuizIndexEntry) error {
	_, err := x.pool.Exec(ctx, `
		INSERT INTO quiz_index (id, quiz_type, title, note_ref, group_ref, creator_id, num_questions, question_duration_sec, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
		e.ID, string(e.Type), e.Title, e.NoteRef, e.GroupRef, e.CreatorID, e.NumQuestions, e.QuestionDurationSec, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("index quiz %s: %w", e.ID, err)
	}
	return nil
}

func (x *QuizIndex) ListByNote(ctx context.Context, noteRef, groupRef string) ([]domain.QuizIndexEntry, error) {
	rows, err := x.pool.Query(ctx, `
		SELECT id, quiz_type, title, note_ref, group_ref, creator_id, num_questions, question_duration_sec, created_at
		FROM quiz_index
		WHERE note_ref = $1 AND group_ref = $2
		ORDER BY created_at DESC, id`, noteRef, groupRef)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizIndexEntry, 0)
	for rows.Next() {
		var (
			e        domain.QuizIndexEntry
			quizType string
		)
		if err := rows.Scan(&e.ID, &quizType, &e.Title, &e.NoteRef, &e.GroupRef, &e.CreatorID, &e.NumQuestions, &e.QuestionDurationSec, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.QuizType(quizType)
		out = append(out, e)
	}
	return out, rows.Err()
}
