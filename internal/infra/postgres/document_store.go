package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/domain"
	"async-quiz-service/internal/infra/cas"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DocumentStore keeps quiz documents as JSONB rows guarded by a version column.
// A write succeeds only when the version read is still current.
type DocumentStore struct {
	pool   *pgxpool.Pool
	budget int
}

func NewDocumentStore(pool *pgxpool.Pool, budget int) *DocumentStore {
	return &DocumentStore{pool: pool, budget: budget}
}

func (s *DocumentStore) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	q, _, err := s.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, domain.ErrQuizNotFound
	}
	return q, nil
}

func (s *DocumentStore) Transact(ctx context.Context, quizID string, fn app.UpdateFunc) (*domain.Quiz, bool, error) {
	var (
		final   *domain.Quiz
		applied bool
	)
	err := cas.Loop(ctx, s.budget, func(ctx context.Context) error {
		current, version, err := s.load(ctx, quizID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			final, applied = current, false
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode quiz %s: %w", quizID, err)
		}

		var rows int64
		if current == nil {
			tag, err := s.pool.Exec(ctx,
				`INSERT INTO quizzes (id, data, version) VALUES ($1, $2, 1) ON CONFLICT (id) DO NOTHING`,
				quizID, data)
			if err != nil {
				return fmt.Errorf("insert quiz %s: %w", quizID, err)
			}
			rows = tag.RowsAffected()
		} else {
			tag, err := s.pool.Exec(ctx,
				`UPDATE quizzes SET data = $2, version = version + 1, updated_at = now() WHERE id = $1 AND version = $3`,
				quizID, data, version)
			if err != nil {
				return fmt.Errorf("update quiz %s: %w", quizID, err)
			}
			rows = tag.RowsAffected()
		}
		if rows == 0 {
			return cas.ErrConflict
		}
		final, applied = next, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return final, applied, nil
}

func (s *DocumentStore) load(ctx context.Context, quizID string) (*domain.Quiz, int64, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `SELECT data, version FROM quizzes WHERE id = $1`, quizID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return nil, 0, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return &quiz, version, nil
}
