package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"async-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const archivedQuizzesKey = "quizzes:archived"

// AttemptArchive keeps one snapshot per participant in the hash
// quiz:{id}:attempts. The per-quiz version at quiz:{id}:attempts:version is
// bumped in the same MULTI as the snapshot write, so it survives restarts.
type AttemptArchive struct {
	client *redis.Client
}

func NewAttemptArchive(client *redis.Client) *AttemptArchive {
	return &AttemptArchive{client: client}
}

func (a *AttemptArchive) Save(ctx context.Context, s domain.AttemptSnapshot) (int64, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("encode attempt: %w", err)
	}
	var version *redis.IntCmd
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, attemptsKey(s.QuizID), s.UID, data)
		pipe.SAdd(ctx, archivedQuizzesKey, s.QuizID)
		version = pipe.Incr(ctx, attemptsVersionKey(s.QuizID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save attempt %s/%s: %w", s.QuizID, s.UID, err)
	}
	return version.Val(), nil
}

// List reads the snapshots and the version in one MULTI so they describe the same state.
func (a *AttemptArchive) List(ctx context.Context, quizID string) ([]domain.AttemptSnapshot, int64, error) {
	var (
		all     *redis.MapStringStringCmd
		version *redis.StringCmd
	)
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		all = pipe.HGetAll(ctx, attemptsKey(quizID))
		version = pipe.Get(ctx, attemptsVersionKey(quizID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("list attempts %s: %w", quizID, err)
	}

	var v int64
	if version.Err() == nil {
		if v, err = version.Int64(); err != nil {
			return nil, 0, fmt.Errorf("parse attempt version %s: %w", quizID, err)
		}
	}

	out := make([]domain.AttemptSnapshot, 0, len(all.Val()))
	for uid, raw := range all.Val() {
		var s domain.AttemptSnapshot
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, 0, fmt.Errorf("decode attempt %s/%s: %w", quizID, uid, err)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, v, nil
}

func (a *AttemptArchive) QuizIDs(ctx context.Context) ([]string, error) {
	ids, err := a.client.SMembers(ctx, archivedQuizzesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list archived quizzes: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func attemptsKey(quizID string) string {
	return "quiz:" + quizID + ":attempts"
}

func attemptsVersionKey(quizID string) string {
	return "quiz:" + quizID + ":attempts:version"
}
