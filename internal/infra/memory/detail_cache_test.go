package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"async-quiz-service/internal/domain"
)

func TestDetailCacheCaches(t *testing.T) {
	loader := &countingLoader{details: map[string]domain.QuizDetail{
		"quiz-1": {ID: "quiz-1", Title: "Cells", NumQuestions: 1},
	}}
	cache := NewDetailCache(loader, time.Minute)

	if _, err := cache.GetDetail(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	detail, err := cache.GetDetail(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get detail 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if detail.Title != "Cells" {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestDetailCacheExpires(t *testing.T) {
	loader := &countingLoader{details: map[string]domain.QuizDetail{"quiz-1": {ID: "quiz-1"}}}
	cache := NewDetailCache(loader, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetDetail(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetDetail(context.Background(), "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestDetailCacheDoesNotCacheMisses(t *testing.T) {
	loader := &countingLoader{details: map[string]domain.QuizDetail{}}
	cache := NewDetailCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetDetail(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected every miss to reach the loader, got %d", loader.calls)
	}
}

type countingLoader struct {
	details map[string]domain.QuizDetail
	calls   int
}

func (l *countingLoader) LoadDetail(_ context.Context, quizID string) (domain.QuizDetail, error) {
	l.calls++
	if d, ok := l.details[quizID]; ok {
		return d, nil
	}
	return domain.QuizDetail{}, domain.ErrQuizNotFound
}
