package app

import (
	"context"
	"strings"

	"async-quiz-service/internal/domain"
	"go.uber.org/zap"
)

// NameChain tries each source in order and falls back to the raw id.
type NameChain struct {
	sources []NameSource
	logger  *zap.Logger
}

func NewNameChain(logger *zap.Logger, sources ...NameSource) *NameChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NameChain{sources: sources, logger: logger}
}

func (c *NameChain) DisplayNameFor(ctx context.Context, uid string) string {
	for _, src := range c.sources {
		name, err := src.LookupName(ctx, uid)
		if err != nil {
			c.logger.Debug("name source failed", zap.String("uid", uid), zap.Error(err))
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return uid
}

// DetailLoader reads quiz details straight from the document store.
type DetailLoader struct {
	docs DocumentStore
}

func NewDetailLoader(docs DocumentStore) *DetailLoader {
	return &DetailLoader{docs: docs}
}

func (l *DetailLoader) LoadDetail(ctx context.Context, quizID string) (domain.QuizDetail, error) {
	q, err := l.docs.Get(ctx, quizID)
	if err != nil {
		return domain.QuizDetail{}, err
	}
	return q.Detail(), nil
}

// GetDetail lets the loader serve as an uncached DetailRepository.
func (l *DetailLoader) GetDetail(ctx context.Context, quizID string) (domain.QuizDetail, error) {
	return l.LoadDetail(ctx, quizID)
}
