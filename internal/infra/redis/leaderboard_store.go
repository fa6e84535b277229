package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"async-quiz-service/internal/domain"
	"async-quiz-service/internal/infra/cas"
	"github.com/redis/go-redis/v9"
)

// LeaderboardStore publishes leaderboards at quiz:{id}:leaderboard. A publish
// computed from an older archive version than the stored one is skipped.
type LeaderboardStore struct {
	client *redis.Client
	budget int
}

func NewLeaderboardStore(client *redis.Client, budget int) *LeaderboardStore {
	return &LeaderboardStore{client: client, budget: budget}
}

func (s *LeaderboardStore) Publish(ctx context.Context, board domain.Leaderboard) (bool, error) {
	key := leaderboardKey(board.QuizID)
	data, err := json.Marshal(board)
	if err != nil {
		return false, fmt.Errorf("encode leaderboard: %w", err)
	}

	var applied bool
	err = cas.Loop(ctx, s.budget, func(ctx context.Context) error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, found, err := readBoard(ctx, tx, key)
			if err != nil {
				return err
			}
			if found && current.Version > board.Version {
				applied = false
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			if errors.Is(err, redis.TxFailedErr) {
				return cas.ErrConflict
			}
			if err != nil {
				return err
			}
			applied = true
			return nil
		}, key)
	})
	return applied, err
}

func (s *LeaderboardStore) Get(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	board, found, err := readBoard(ctx, s.client, leaderboardKey(quizID))
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if !found {
		return domain.Leaderboard{QuizID: quizID, Entries: []domain.LeaderboardEntry{}}, nil
	}
	return board, nil
}

func readBoard(ctx context.Context, c redis.Cmdable, key string) (domain.Leaderboard, bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("read leaderboard: %w", err)
	}
	var board domain.Leaderboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("decode leaderboard: %w", err)
	}
	return board, true, nil
}

func leaderboardKey(quizID string) string {
	return "quiz:" + quizID + ":leaderboard"
}
