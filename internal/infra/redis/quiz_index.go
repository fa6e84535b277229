package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"async-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const quizIndexKey = "quizzes:index"

// QuizIndex stores listing records as JSON in the hash quizzes:index and keeps
// one sorted set per (note, group) scored by creation time.
type QuizIndex struct {
	client *redis.Client
}

func NewQuizIndex(client *redis.Client) *QuizIndex {
	return &QuizIndex{client: client}
}

func (x *QuizIndex) Put(ctx context.Context, e domain.QuizIndexEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode index entry: %w", err)
	}
	_, err = x.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, quizIndexKey, e.ID, data)
		pipe.ZAdd(ctx, noteKey(e.NoteRef, e.GroupRef), redis.Z{Score: float64(e.CreatedAt.UnixMilli()), Member: e.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("index quiz %s: %w", e.ID, err)
	}
	return nil
}

// ListByNote returns the note's quizzes in groupRef ("" for personal quizzes), newest first.
func (x *QuizIndex) ListByNote(ctx context.Context, noteRef, groupRef string) ([]domain.QuizIndexEntry, error) {
	ids, err := x.client.ZRange(ctx, noteKey(noteRef, groupRef), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.QuizIndexEntry, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raws, err := x.client.HMGet(ctx, quizIndexKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load index entries: %w", err)
	}
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			// sorted set member without a record
			continue
		}
		var e domain.QuizIndexEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("decode index entry %s: %w", ids[i], err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func noteKey(noteRef, groupRef string) string {
	return "note:" + noteRef + ":group:" + groupRef + ":quizzes"
}
