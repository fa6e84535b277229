package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"async-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DetailLoader fetches quiz details from the document store.
type DetailLoader interface {
	LoadDetail(ctx context.Context, quizID string) (domain.QuizDetail, error)
}

// DetailCache caches quiz details in Redis (quiz:{id}:detail) and falls back
// to the loader on a miss. Concurrent misses for one quiz share a single load.
type DetailCache struct {
	client *redis.Client
	loader DetailLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewDetailCache(client *redis.Client, loader DetailLoader, ttl time.Duration) *DetailCache {
	return &DetailCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DetailCache) GetDetail(ctx context.Context, quizID string) (domain.QuizDetail, error) {
	key := detailKey(quizID)
	if detail, ok := c.cached(ctx, key); ok {
		return detail, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if detail, ok := c.cached(ctx, key); ok {
			return detail, nil
		}

		detail, err := c.loader.LoadDetail(ctx, quizID)
		if err != nil {
			return domain.QuizDetail{}, err
		}
		if data, err := json.Marshal(detail); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return detail, nil
	})
	if err != nil {
		return domain.QuizDetail{}, err
	}
	return result.(domain.QuizDetail), nil
}

func (c *DetailCache) cached(ctx context.Context, key string) (domain.QuizDetail, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// a Redis outage degrades to loading from the document store
		return domain.QuizDetail{}, false
	}
	var detail domain.QuizDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return domain.QuizDetail{}, false
	}
	return detail, true
}

func detailKey(quizID string) string {
	return "quiz:" + quizID + ":detail"
}

func (c *DetailCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
