package memory

import (
	"context"
	"sort"
	"sync"

	"async-quiz-service/internal/domain"
)

// QuizIndex keeps listing records keyed by note.
type QuizIndex struct {
	mu      sync.RWMutex
	entries map[string]domain.QuizIndexEntry
}

func NewQuizIndex() *QuizIndex {
	return &QuizIndex{entries: make(map[string]domain.QuizIndexEntry)}
}

func (x *QuizIndex) Put(_ context.Context, entry domain.QuizIndexEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[entry.ID] = entry
	return nil
}

// ListByNote returns the note's quizzes in groupRef ("" for personal quizzes), newest first.
func (x *QuizIndex) ListByNote(_ context.Context, noteRef, groupRef string) ([]domain.QuizIndexEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.QuizIndexEntry, 0)
	for _, e := range x.entries {
		if e.NoteRef == noteRef && e.GroupRef == groupRef {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
