package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/domain"
	"async-quiz-service/internal/infra/cas"
)

// DocumentStore is a single-process app.DocumentStore. Documents are kept
// encoded with a version stamp; every transact attempt decodes a private copy
// and commits only if the version is unchanged.
type DocumentStore struct {
	budget int

	mu   sync.RWMutex
	docs map[string]versionedDoc
}

type versionedDoc struct {
	version int64
	data    []byte
}

func NewDocumentStore(budget int) *DocumentStore {
	return &DocumentStore{budget: budget, docs: make(map[string]versionedDoc)}
}

func (s *DocumentStore) Get(_ context.Context, quizID string) (*domain.Quiz, error) {
	doc, ok := s.read(quizID)
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return decode(doc.data)
}

func (s *DocumentStore) Transact(ctx context.Context, quizID string, fn app.UpdateFunc) (*domain.Quiz, bool, error) {
	var (
		final   *domain.Quiz
		applied bool
	)
	err := cas.Loop(ctx, s.budget, func(ctx context.Context) error {
		doc, exists := s.read(quizID)
		var current *domain.Quiz
		if exists {
			q, err := decode(doc.data)
			if err != nil {
				return err
			}
			current = q
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

		s.mu.Lock()
		defer s.mu.Unlock()
		stored, stillExists := s.docs[quizID]
		if stillExists != exists || stored.version != doc.version {
			return cas.ErrConflict
		}
		s.docs[quizID] = versionedDoc{version: doc.version + 1, data: data}
		final, applied = next, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return final, applied, nil
}

// Version reports the stored version of a document, zero when absent.
func (s *DocumentStore) Version(quizID string) int64 {
	doc, _ := s.read(quizID)
	return doc.version
}

func (s *DocumentStore) read(quizID string) (versionedDoc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[quizID]
	return doc, ok
}

func decode(data []byte) (*domain.Quiz, error) {
	var q domain.Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	return &q, nil
}
