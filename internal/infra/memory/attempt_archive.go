package memory

import (
	"context"
	"sort"
	"sync"

	"async-quiz-service/internal/domain"
)

// AttemptArchive keeps finished-attempt snapshots in process memory.
type AttemptArchive struct {
	mu       sync.RWMutex
	attempts map[string]map[string]domain.AttemptSnapshot
	versions map[string]int64
}

func NewAttemptArchive() *AttemptArchive {
	return &AttemptArchive{
		attempts: make(map[string]map[string]domain.AttemptSnapshot),
		versions: make(map[string]int64),
	}
}

func (a *AttemptArchive) Save(_ context.Context, snapshot domain.AttemptSnapshot) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	byUID, ok := a.attempts[snapshot.QuizID]
	if !ok {
		byUID = make(map[string]domain.AttemptSnapshot)
		a.attempts[snapshot.QuizID] = byUID
	}
	byUID[snapshot.UID] = snapshot
	a.versions[snapshot.QuizID]++
	return a.versions[snapshot.QuizID], nil
}

func (a *AttemptArchive) List(_ context.Context, quizID string) ([]domain.AttemptSnapshot, int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	byUID := a.attempts[quizID]
	out := make([]domain.AttemptSnapshot, 0, len(byUID))
	for _, s := range byUID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, a.versions[quizID], nil
}

func (a *AttemptArchive) QuizIDs(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.attempts))
	for id := range a.attempts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
