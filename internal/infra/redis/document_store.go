package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/domain"
	"async-quiz-service/internal/infra/cas"
	"github.com/redis/go-redis/v9"
)

// DocumentStore keeps each quiz document as a JSON string at quiz:{id}:doc.
// Transact uses WATCH/MULTI/EXEC, so a write racing ours aborts our EXEC and
// the update is re-run on the fresh value.
type DocumentStore struct {
	client *redis.Client
	budget int
}

func NewDocumentStore(client *redis.Client, budget int) *DocumentStore {
	return &DocumentStore{client: client, budget: budget}
}

func (s *DocumentStore) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	raw, err := s.client.Get(ctx, docKey(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	return decodeQuiz(raw)
}

func (s *DocumentStore) Transact(ctx context.Context, quizID string, fn app.UpdateFunc) (*domain.Quiz, bool, error) {
	key := docKey(quizID)
	var (
		final   *domain.Quiz
		applied bool
	)
	err := cas.Loop(ctx, s.budget, func(ctx context.Context) error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			var current *domain.Quiz
			raw, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return fmt.Errorf("read quiz %s: %w", quizID, err)
			default:
				if current, err = decodeQuiz(raw); err != nil {
					return err
				}
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

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			if errors.Is(err, redis.TxFailedErr) {
				return cas.ErrConflict
			}
			if err != nil {
				return fmt.Errorf("write quiz %s: %w", quizID, err)
			}
			final, applied = next, true
			return nil
		}, key)
	})
	if err != nil {
		return nil, false, err
	}
	return final, applied, nil
}

func docKey(quizID string) string {
	return "quiz:" + quizID + ":doc"
}

func decodeQuiz(raw []byte) (*domain.Quiz, error) {
	var q domain.Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	return &q, nil
}
