package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"async-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DetailLoader fetches quiz details from the document store.
type DetailLoader interface {
	LoadDetail(ctx context.Context, quizID string) (domain.QuizDetail, error)
}

// DetailCache caches quiz details with TTL. Questions never change after
// creation, so a cached detail never goes stale in content.
type DetailCache struct {
	loader DetailLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedDetail
}

type cachedDetail struct {
	detail    domain.QuizDetail
	expiresAt time.Time
}

func NewDetailCache(loader DetailLoader, ttl time.Duration) *DetailCache {
	return &DetailCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDetail),
	}
}

func (c *DetailCache) GetDetail(ctx context.Context, quizID string) (domain.QuizDetail, error) {
	if detail, ok := c.lookup(quizID); ok {
		return detail, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if detail, ok := c.lookup(quizID); ok {
			return detail, nil
		}

		detail, err := c.loader.LoadDetail(ctx, quizID)
		if err != nil {
			return domain.QuizDetail{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedDetail{
			detail:    detail,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return detail, nil
	})
	if err != nil {
		return domain.QuizDetail{}, err
	}
	return result.(domain.QuizDetail), nil
}

func (c *DetailCache) lookup(quizID string) (domain.QuizDetail, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.QuizDetail{}, false
	}
	return entry.detail, true
}

func (c *DetailCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
